package classifier

// DefaultSubjects returns the built-in subject catalogue. The routing config
// file can override keywords, patterns, priority and enabled per subject.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{
			Id:          SubjectMathematics,
			Description: "Mathematics: arithmetic, algebra, geometry, calculus, equations and proofs",
			Keywords: []string{
				"what is", "calculate", "solve", "equation", "integral", "derivative",
				"theorem", "algebra", "geometry", "matrix", "probability", "fraction",
				"sum of", "square root", "math",
			},
			Patterns: []string{
				`\d+\s*[-+*/×÷=^]\s*\d+`,
				`\b\d+(\.\d+)?\b`,
				`[-+*/×÷=^√∑∫π]`,
				`(?i)what\s+is\s+[-\d(]`,
				`\d\s*[-+*/]`,
			},
			Priority: 5,
			Enabled:  true,
		},
		{
			Id:          SubjectProgramming,
			Description: "Programming: source code, debugging, algorithms, software libraries and APIs",
			Keywords: []string{
				"code", "function", "compile", "debug", "error", "bug", "api",
				"python", "golang", "javascript", "sql", "library", "class",
				"variable", "algorithm", "program", "script",
			},
			Patterns: []string{
				"```",
				`\bdef\s+\w+\(`,
				`\bfunc\s+\w+\(`,
				`\w+\.\w+\(`,
				`</?\w+>`,
				`[{};]\s*$`,
			},
			Priority: 4,
			Enabled:  true,
		},
		{
			Id:          SubjectScience,
			Description: "Natural science: physics, chemistry, biology, astronomy and experiments",
			Keywords: []string{
				"physics", "chemistry", "biology", "molecule", "atom", "cell",
				"energy", "experiment", "reaction", "planet", "gravity", "species",
				"dna", "quantum", "science",
			},
			Patterns: []string{
				`\b[A-Z][a-z]?\d+[A-Z][a-z]?\d*\b`, // chemical formulas like H2O, CO2
				`\b\d+(\.\d+)?\s?(kg|m/s|mol|joule|kelvin|nm)\b`,
			},
			Priority: 3,
			Enabled:  true,
		},
		{
			Id:          SubjectHistory,
			Description: "History: past events, eras, wars, empires and historical figures",
			Keywords: []string{
				"history", "war", "empire", "revolution", "ancient", "medieval",
				"century", "dynasty", "treaty", "civilization", "king", "queen",
			},
			Patterns: []string{
				`\b\d{3,4}\s?(AD|BC|BCE|CE)\b`,
				`\b\d{1,2}(st|nd|rd|th)\s+century\b`,
				`\b1[0-9]{3}s?\b`,
			},
			Priority: 2,
			Enabled:  true,
		},
		{
			Id:          SubjectLiterature,
			Description: "Literature: novels, poetry, authors, literary analysis and quotations",
			Keywords: []string{
				"novel", "poem", "author", "literature", "character", "plot",
				"metaphor", "shakespeare", "chapter", "essay", "narrator", "theme",
			},
			Patterns: []string{
				`"[^"]{3,80}"`, // quoted titles or passages
				`“[^”]{3,80}”`,
				`\bby\s+[A-Z][a-z]+\s+[A-Z][a-z]+\b`,
			},
			Priority: 1,
			Enabled:  true,
		},
	}
}
