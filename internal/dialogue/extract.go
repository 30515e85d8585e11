package dialogue

import (
	"regexp"
	"strings"
)

var (
	dateRe    = regexp.MustCompile(`(?i)(\d{4}-\d{2}-\d{2}|\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\s+\d{1,2}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b)`)
	timeRe    = regexp.MustCompile(`(?i)(\b\d{1,2}:\d{2}\s*(am|pm)?\b|\b\d{1,2}\s*(am|pm)\b)`)
	emailRe   = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	confirmRe = regexp.MustCompile(`(?i)\b(yes|yeah|yep|confirm|sure|go ahead|okay|ok)\b`)
	declineRe = regexp.MustCompile(`(?i)\b(no|nope|cancel|stop)\b`)
	thinkRe   = regexp.MustCompile(`(?is)<think>.*?</think>`)
)

// ExtractDate returns the first ISO (2025-09-15), month-day (September 15) or d/m/y date in text.
func ExtractDate(text string) (string, bool) {
	m := dateRe.FindString(text)
	return m, m != ""
}

// ExtractTime returns the first time in text, upper-cased ("10:00 am" -> "10:00 AM").
func ExtractTime(text string) (string, bool) {
	m := timeRe.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.ToUpper(m), true
}

func ExtractEmail(text string) (string, bool) {
	m := emailRe.FindString(text)
	return m, m != ""
}

func IsConfirmation(text string) bool {
	return confirmRe.MatchString(text)
}

func IsDecline(text string) bool {
	return declineRe.MatchString(text)
}

// StripThinking removes <think>...</think> blocks some chat models emit before the answer.
func StripThinking(reply string) string {
	return strings.TrimSpace(thinkRe.ReplaceAllString(reply, ""))
}
