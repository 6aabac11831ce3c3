package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	dps "github.com/markusmobius/go-dateparser"

	"github.com/noah-isme/study-companion-api/internal/models"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
)

var (
	assignmentKeywords = regexp.MustCompile(`(?i)\b(exam|test|quiz|midterm|final|assignment|homework|project|presentation|essay|paper|due|deadline|submit)`)
	courseDelimiter    = regexp.MustCompile(`(?i)\b(exam|test|quiz|final|midterm|assignment)`)

	essayKeywords        = regexp.MustCompile(`(?i)\b(essay|paper)`)
	presentationKeywords = regexp.MustCompile(`(?i)\bpresent`)
	quizKeywords         = regexp.MustCompile(`(?i)\bquiz`)
	examKeywords         = regexp.MustCompile(`(?i)\b(exam|test|midterm|final)`)

	theoryKeywords    = regexp.MustCompile(`(?i)\b(theory|theoretical|written)`)
	practicalKeywords = regexp.MustCompile(`(?i)\b(lab|practical|coding|hands-on)`)
)

var topicStopWords = map[string]struct{}{
	"exam": {}, "test": {}, "quiz": {}, "final": {}, "midterm": {}, "assignment": {},
	"the": {}, "a": {}, "an": {},
}

const maxTopics = 3

// DetectAssignment reports whether an event title names an academic deadline.
func DetectAssignment(title string) bool {
	return assignmentKeywords.MatchString(title)
}

// AssignmentDetector turns calendar event text into assignment details.
type AssignmentDetector struct {
	loc *time.Location
	now func() time.Time
}

// NewAssignmentDetector builds a detector interpreting zone-less dates in loc.
func NewAssignmentDetector(loc *time.Location, now func() time.Time) *AssignmentDetector {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &AssignmentDetector{loc: loc, now: now}
}

// Extract parses rawDate and derives the assignment details from title.
func (d *AssignmentDetector) Extract(title, rawDate string) (*models.AssignmentInfo, error) {
	due, err := d.ParseDueAt(rawDate)
	if err != nil {
		return nil, err
	}
	info := ExtractAssignmentInfo(title, due)
	return &info, nil
}

// ParseDueAt accepts RFC3339, RFC3339 without zone, date-only and free-form
// dates. Unparsable input yields ErrInvalidAssignment.
func (d *AssignmentDetector) ParseDueAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, appErrors.Clone(appErrors.ErrInvalidAssignment, "due date is missing")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, d.loc); err == nil {
			return t, nil
		}
	}

	parsed, err := dps.Parse(&dps.Configuration{
		CurrentTime:     d.now().In(d.loc),
		DefaultTimezone: d.loc,
	}, raw)
	if err != nil || parsed.Time.IsZero() {
		return time.Time{}, appErrors.WrapAs(err, appErrors.ErrInvalidAssignment, fmt.Sprintf("cannot parse due date %q", raw))
	}
	return parsed.Time, nil
}

// ExtractAssignmentInfo classifies title and pulls out course and topics.
func ExtractAssignmentInfo(title string, due time.Time) models.AssignmentInfo {
	title = strings.TrimSpace(title)
	return models.AssignmentInfo{
		Title:   title,
		Course:  CourseName(title),
		Type:    ClassifyAssignment(title),
		Subtype: ClassifyExamSubtype(title),
		DueAt:   due,
		Topics:  ExtractTopics(title),
	}
}

// ClassifyAssignment maps a title onto an assignment type.
func ClassifyAssignment(title string) models.AssignmentType {
	switch {
	case essayKeywords.MatchString(title):
		return models.AssignmentTypeEssay
	case presentationKeywords.MatchString(title):
		return models.AssignmentTypePresentation
	case quizKeywords.MatchString(title):
		return models.AssignmentTypeQuiz
	case examKeywords.MatchString(title):
		return models.AssignmentTypeExam
	default:
		return models.AssignmentTypeOther
	}
}

// ClassifyExamSubtype guesses whether an exam is theoretical, practical or both.
func ClassifyExamSubtype(title string) models.ExamSubtype {
	theory := theoryKeywords.MatchString(title)
	practical := practicalKeywords.MatchString(title)
	switch {
	case theory && !practical:
		return models.ExamSubtypeTheoretical
	case practical && !theory:
		return models.ExamSubtypePractical
	default:
		return models.ExamSubtypeHybrid
	}
}

// CourseName is the title text preceding the first exam keyword, or the whole
// title when there is none.
func CourseName(title string) string {
	loc := courseDelimiter.FindStringIndex(title)
	if loc == nil {
		return strings.TrimSpace(title)
	}
	course := strings.TrimFunc(title[:loc[0]], func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	if course == "" {
		return strings.TrimSpace(title)
	}
	return course
}

// ExtractTopics keeps up to three meaningful words from title.
func ExtractTopics(title string) []string {
	words := strings.Fields(title)
	topics := make([]string, 0, maxTopics)
	for _, w := range words {
		clean := strings.TrimFunc(w, unicode.IsPunct)
		if len(clean) <= 2 {
			continue
		}
		if _, stop := topicStopWords[strings.ToLower(clean)]; stop {
			continue
		}
		topics = append(topics, clean)
		if len(topics) == maxTopics {
			break
		}
	}
	if len(topics) > 0 {
		return topics
	}
	if len(words) > 0 {
		return []string{words[0]}
	}
	return []string{"General"}
}

// ReminderMessage is the chat style nudge asking for study material.
func ReminderMessage(course string, daysUntil int) string {
	urgency := fmt.Sprintf("in %d days", daysUntil)
	if daysUntil <= 1 {
		urgency = "tomorrow"
	}
	return fmt.Sprintf("Hey! You have an exam %s on %s. Can you share your slides/notes so I can generate personalized practice questions?", urgency, course)
}
