package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"scribe/web"
)

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "HTTP listen port")
	viper.BindPFlag("http_port", serveCmd.Flags().Lookup("port"))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dictation dashboard over HTTP",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	a, err := newApp()
	if err != nil {
		logger.Fatal("start application", "error", err.Error())
	}

	handler := web.NewHandler(a, logger.With().WithPrefix("http"))
	port := viper.GetInt("http_port")

	logger.Info("listening", "addr", fmt.Sprintf("http://localhost:%d", port))
	err = http.ListenAndServe(fmt.Sprintf(":%d", port), handler.Router())
	if err != nil {
		logger.Fatal("http server", "error", err.Error())
	}
}
