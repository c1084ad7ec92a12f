package notes

import (
	"strings"
	"unicode/utf8"

	"scribe/patient"
	"scribe/settings"
)

// Prompt assembly is deterministic: same transcript, patient, and
// preferences always produce the same two messages.

const (
	systemBase = "You are an expert medical scribe assistant specializing in clinical documentation."

	styleStandard = " Write the notes in a standard clinical format."
	styleDetailed = " Write thorough, detailed notes expanding on all clinical findings."
	styleConcise  = " Write brief, concise notes covering only the essential points."

	systemClosing = " Use precise medical terminology and format the notes clearly with section headings."

	userClosing = "Generate the medical notes for this visit."

	// Visits in the patient context block show at most this many
	// characters of their notes.
	visitDigestLen = 200

	// How many of the most recent visits appear in the context block.
	visitDigestCount = 3
)

// SystemPrompt builds the system instruction from the preferences.
func SystemPrompt(prefs settings.Preferences) string {
	var b strings.Builder
	b.WriteString(systemBase)

	switch prefs.NoteStyle {
	case settings.StyleDetailed:
		b.WriteString(styleDetailed)
	case settings.StyleConcise:
		b.WriteString(styleConcise)
	default:
		b.WriteString(styleStandard)
	}

	b.WriteString(" Include the following sections: Chief Complaint, History of Present Illness, ")
	if prefs.IncludeAssessment {
		b.WriteString("Assessment, ")
	}
	if prefs.IncludePlan {
		b.WriteString("Plan, ")
	}
	b.WriteString("and any other clinically relevant sections.")

	if custom := strings.TrimSpace(prefs.CustomInstructions); custom != "" {
		b.WriteString(" ")
		b.WriteString(custom)
	}

	b.WriteString(systemClosing)
	return b.String()
}

// UserPrompt builds the user message: an optional patient context block,
// the raw transcript, and a closing instruction.
func UserPrompt(transcript string, p *patient.Patient) string {
	var b strings.Builder

	if p != nil {
		b.WriteString("Patient Context:\n")
		b.WriteString("Name: " + p.Name + "\n")
		b.WriteString("DOB: " + p.DOB + "\n")
		b.WriteString("MRN: " + p.MRN + "\n")
		b.WriteString("Known Conditions: " + p.Conditions + "\n")

		if len(p.Visits) > 0 {
			b.WriteString("Recent Visits:\n")
			start := len(p.Visits) - visitDigestCount
			if start < 0 {
				start = 0
			}
			for _, v := range p.Visits[start:] {
				b.WriteString("- " + v.Timestamp + ": " + truncate(v.Notes, visitDigestLen) + "\n")
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("Transcript:\n")
	b.WriteString(transcript)
	b.WriteString("\n\n")
	b.WriteString(userClosing)
	return b.String()
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
