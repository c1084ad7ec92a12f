package web

import (
	"html/template"
	"net/http"
)

func (h *Handler) handleIndex(w http.ResponseWriter, _ *http.Request) {
	if err := indexTemplate.Execute(w, h.app.Snapshot()); err != nil {
		h.logger.Error("failed to execute template", "error", err.Error())
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

var indexTemplate = template.Must(template.New("index").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Scribe</title>
    <script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-100">
    <div class="container mx-auto px-4 py-8 max-w-5xl">
        <h1 class="text-3xl font-bold mb-2">Scribe</h1>
        <p id="status" class="text-gray-600 mb-6">{{.Status}}</p>

        <div class="grid grid-cols-1 md:grid-cols-2 gap-6">
            <div class="bg-white shadow rounded-lg p-4">
                <h2 class="text-xl font-semibold mb-3">Recording</h2>
                <div class="space-x-2 mb-4">
                    <button onclick="action('/api/recording/start')" class="bg-red-600 text-white px-4 py-2 rounded">Start</button>
                    <button onclick="action('/api/recording/stop')" class="bg-gray-700 text-white px-4 py-2 rounded">Stop</button>
                    <button onclick="action('/api/notes/generate')" class="bg-blue-600 text-white px-4 py-2 rounded">Generate Notes</button>
                    <button onclick="action('/api/notes/save')" class="bg-green-600 text-white px-4 py-2 rounded">Save Visit</button>
                    <button onclick="action('/api/session/clear')" class="bg-gray-400 text-white px-4 py-2 rounded">Clear</button>
                </div>
                <h3 class="font-medium text-gray-700">Transcript</h3>
                <pre id="transcript" class="whitespace-pre-wrap bg-gray-50 rounded p-2 min-h-24 text-sm">{{.Transcript}}</pre>
                <h3 class="font-medium text-gray-700 mt-4">Medical Notes</h3>
                <pre id="notes" class="whitespace-pre-wrap bg-gray-50 rounded p-2 min-h-24 text-sm">{{.MedicalNotes}}</pre>
            </div>

            <div class="bg-white shadow rounded-lg p-4">
                <h2 class="text-xl font-semibold mb-3">Patients</h2>
                <select id="patient" onchange="selectPatient(this.value)" class="border rounded p-2 w-full mb-4">
                    <option value="">No patient selected</option>
                    {{range .Patients}}
                    <option value="{{.ID}}" {{if eq .ID $.SelectedPatientID}}selected{{end}}>{{.Name}} ({{.MRN}})</option>
                    {{end}}
                </select>
                <form onsubmit="return addPatient(this)" class="space-y-2">
                    <input name="name" placeholder="Name" class="border rounded p-2 w-full" required>
                    <input name="dob" placeholder="Date of birth" class="border rounded p-2 w-full">
                    <input name="mrn" placeholder="MRN" class="border rounded p-2 w-full">
                    <input name="conditions" placeholder="Known conditions" class="border rounded p-2 w-full">
                    <button class="bg-blue-600 text-white px-4 py-2 rounded">Add Patient</button>
                </form>
            </div>

            <div class="bg-white shadow rounded-lg p-4">
                <h2 class="text-xl font-semibold mb-3">Note Preferences</h2>
                <form onsubmit="return savePreferences(this)" class="space-y-2">
                    <select name="noteStyle" class="border rounded p-2 w-full">
                        <option value="standard" {{if eq .Preferences.NoteStyle "standard"}}selected{{end}}>Standard</option>
                        <option value="detailed" {{if eq .Preferences.NoteStyle "detailed"}}selected{{end}}>Detailed</option>
                        <option value="concise" {{if eq .Preferences.NoteStyle "concise"}}selected{{end}}>Concise</option>
                    </select>
                    <label class="block"><input type="checkbox" name="includeAssessment" {{if .Preferences.IncludeAssessment}}checked{{end}}> Include Assessment</label>
                    <label class="block"><input type="checkbox" name="includePlan" {{if .Preferences.IncludePlan}}checked{{end}}> Include Plan</label>
                    <textarea name="customInstructions" placeholder="Custom instructions" class="border rounded p-2 w-full">{{.Preferences.CustomInstructions}}</textarea>
                    <button class="bg-blue-600 text-white px-4 py-2 rounded">Save Preferences</button>
                </form>
            </div>

            <div class="bg-white shadow rounded-lg p-4">
                <h2 class="text-xl font-semibold mb-3">API Settings</h2>
                <p class="text-sm text-gray-500 mb-2">
                    Speech: {{if .SpeechConfigured}}configured{{else}}not configured{{end}},
                    OpenAI: {{if .OpenAIConfigured}}configured{{else}}not configured{{end}}
                </p>
                <form onsubmit="return saveSettings(this)" class="space-y-2">
                    <input name="speechKey" type="password" placeholder="Speech key" class="border rounded p-2 w-full">
                    <input name="speechRegion" placeholder="Speech region" class="border rounded p-2 w-full">
                    <input name="openaiEndpoint" placeholder="OpenAI endpoint" class="border rounded p-2 w-full">
                    <input name="openaiKey" type="password" placeholder="OpenAI key" class="border rounded p-2 w-full">
                    <input name="openaiDeployment" placeholder="Deployment" class="border rounded p-2 w-full">
                    <input name="openaiApiVersion" placeholder="API version" class="border rounded p-2 w-full">
                    <select name="recognizer" class="border rounded p-2 w-full">
                        <option value="azure">Azure recognizer</option>
                        <option value="deepgram">Deepgram recognizer</option>
                    </select>
                    <button class="bg-blue-600 text-white px-4 py-2 rounded">Save Settings</button>
                </form>
            </div>
        </div>
    </div>

    <script>
    function render(state) {
        document.getElementById('status').textContent = state.status;
        document.getElementById('transcript').textContent = state.transcript;
        document.getElementById('notes').textContent = state.medicalNotes;
    }

    async function action(path, body) {
        const resp = await fetch(path, {
            method: 'POST',
            headers: {'Content-Type': 'application/json'},
            body: JSON.stringify(body || {}),
        });
        if (resp.ok) {
            const state = await resp.json();
            render(state);
            if (path === '/api/patients') location.reload();
        }
    }

    function selectPatient(id) { action('/api/patients/select', {id: id}); }

    function addPatient(form) {
        action('/api/patients', {
            name: form.name.value,
            dob: form.dob.value,
            mrn: form.mrn.value,
            conditions: form.conditions.value,
        });
        return false;
    }

    function savePreferences(form) {
        action('/api/preferences', {
            noteStyle: form.noteStyle.value,
            includeAssessment: form.includeAssessment.checked,
            includePlan: form.includePlan.checked,
            customInstructions: form.customInstructions.value,
        });
        return false;
    }

    function saveSettings(form) {
        action('/api/settings', {
            speechKey: form.speechKey.value,
            speechRegion: form.speechRegion.value,
            openaiEndpoint: form.openaiEndpoint.value,
            openaiKey: form.openaiKey.value,
            openaiDeployment: form.openaiDeployment.value,
            openaiApiVersion: form.openaiApiVersion.value,
            recognizer: form.recognizer.value,
        });
        return false;
    }

    setInterval(async () => {
        const resp = await fetch('/api/state');
        if (resp.ok) render(await resp.json());
    }, 1000);
    </script>
</body>
</html>
`))
