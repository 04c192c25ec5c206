package game

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/gosimple/slug"
)

var (
	// A parenthetical that opens the title is part of it, as in
	// "(I Can't Get No) Satisfaction".
	trailingBrackets = regexp.MustCompile(`\s+(\([^)]*\)|\[[^\]]*\])`)
	anyBrackets      = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	versionSuffix    = regexp.MustCompile(`(?i)\s+-\s+(.*\b(remaster(ed)?|live|version|edit|mix|mono|stereo|demo|acoustic|instrumental)\b.*|\d{4})$`)
	leadingThe       = regexp.MustCompile(`^the-`)
	dashes           = strings.NewReplacer("-", "")
)

// NormalizeTitle reduces a song title to the form guesses are compared in:
// ASCII, lower case, without "(feat. …)", "[Live]", "- Remastered 2009"
// decorations, a leading "The" or punctuation.
func NormalizeTitle(title string) string {
	title = trailingBrackets.ReplaceAllString(title, " ")
	title = versionSuffix.ReplaceAllString(title, "")
	return slugged(title)
}

func slugged(title string) string {
	s := slug.Make(title)
	s = leadingThe.ReplaceAllString(s, "")
	return dashes.Replace(s)
}

// titleForms lists the normalised spellings a guess may match: the usual
// one, the title as written, and the title with every bracket removed.
func titleForms(title string) []string {
	forms := []string{NormalizeTitle(title)}
	for _, f := range []string{
		slugged(title),
		slugged(versionSuffix.ReplaceAllString(anyBrackets.ReplaceAllString(title, " "), "")),
	} {
		if f != "" && f != forms[0] {
			forms = append(forms, f)
		}
	}
	return forms
}

// MatchGuess reports whether guess names title. Longer titles forgive a
// typo or two.
func MatchGuess(guess, title string) bool {
	if strings.TrimSpace(guess) == "" {
		return false
	}

	got := NormalizeTitle(guess)
	if NormalizeTitle(title) == "" && slugged(title) == "" {
		// Titles made only of symbols do not survive slugging.
		return strings.EqualFold(strings.TrimSpace(guess), strings.TrimSpace(title))
	}
	if got == "" {
		return false
	}

	for _, want := range titleForms(title) {
		if want != "" && withinTypos(got, want) {
			return true
		}
	}
	return false
}

func withinTypos(got, want string) bool {
	if got == want {
		return true
	}
	return levenshtein.ComputeDistance(got, want) <= typoAllowance(len(want))
}

func typoAllowance(n int) int {
	switch {
	case n >= 12:
		return 2
	case n >= 6:
		return 1
	default:
		return 0
	}
}
