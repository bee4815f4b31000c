package ignore

import "strings"

// DefaultSource labels patterns from the built-in set in denial reasons.
const DefaultSource = "default patterns"

// ProbeFiles are the ignore-file basenames consulted in the project root,
// in priority order.
var ProbeFiles = []string{
	".agentignore",
	".aiignore",
	".aiexclude",
	".geminiignore",
	".codeiumignore",
	".cursorignore",
}

// DefaultPatterns protect common credential files when a project carries no
// ignore file of its own. The negated entries keep harmless template
// variants readable; they must stay below the patterns they carve out of.
var DefaultPatterns = []string{
	".env",
	".env.*",
	"!.env.example",
	"!.env.sample",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*.keystore",
	"id_rsa*",
	"id_dsa*",
	"id_ecdsa*",
	"id_ed25519*",
	"wallet.*",
	"secring.*",
	".netrc",
	".npmrc",
	".pgpass",
	".git-credentials",
	".bash_history",
	".zsh_history",
	".histfile",
	"credentials.json",
	".ssh/",
	".aws/",
	".gnupg/",
	"secrets/",
}

func defaultPatterns() []Pattern {
	return Parse(strings.Join(DefaultPatterns, "\n"), DefaultSource)
}
