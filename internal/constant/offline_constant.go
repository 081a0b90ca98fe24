package constant

// Offline response templates, keyed by subject id. Family-4 responses are
// deterministic and local: template plus curated links, no network at all.

type OfflineLink struct {
	Title string
	URL   string
}

var OfflineTemplates = map[string]string{
	"mathematics": `**All answer services are currently unavailable.**

Your question looks mathematical. While the service recovers, these resources cover most topics:

%s

Please try again in a few minutes.`,
	"programming": `**All answer services are currently unavailable.**

Your question looks programming-related. These references may help in the meantime:

%s

Please try again in a few minutes.`,
	"science": `**All answer services are currently unavailable.**

Your question looks science-related. These references may help in the meantime:

%s

Please try again in a few minutes.`,
	"history": `**All answer services are currently unavailable.**

Your question looks history-related. These references may help in the meantime:

%s

Please try again in a few minutes.`,
	"literature": `**All answer services are currently unavailable.**

Your question looks literature-related. These references may help in the meantime:

%s

Please try again in a few minutes.`,
	"general": `**All answer services are currently unavailable.**

We could not reach any answer backend. These general references may help in the meantime:

%s

Please try again in a few minutes.`,
}

var OfflineLinks = map[string][]OfflineLink{
	"mathematics": {
		{Title: "Khan Academy — Math", URL: "https://www.khanacademy.org/math"},
		{Title: "Wolfram MathWorld", URL: "https://mathworld.wolfram.com"},
	},
	"programming": {
		{Title: "MDN Web Docs", URL: "https://developer.mozilla.org"},
		{Title: "Go Documentation", URL: "https://go.dev/doc"},
		{Title: "Stack Overflow", URL: "https://stackoverflow.com"},
	},
	"science": {
		{Title: "Khan Academy — Science", URL: "https://www.khanacademy.org/science"},
		{Title: "NASA", URL: "https://www.nasa.gov"},
	},
	"history": {
		{Title: "World History Encyclopedia", URL: "https://www.worldhistory.org"},
	},
	"literature": {
		{Title: "Project Gutenberg", URL: "https://www.gutenberg.org"},
		{Title: "Poetry Foundation", URL: "https://www.poetryfoundation.org"},
	},
	"general": {
		{Title: "Wikipedia", URL: "https://www.wikipedia.org"},
	},
}

// QuotaExceededTemplateV1 is the family-5 informational answer. The verb
// placeholder receives the reset time in UTC.
const QuotaExceededTemplateV1 = `**Daily limit reached.**

You have used your daily budget of assisted answers. The counter resets at **%s UTC**.

Until then you can:
- switch to a local model (if configured) under *Settings → Keys*,
- browse your previous sessions,
- try the offline study links on the status page.`
