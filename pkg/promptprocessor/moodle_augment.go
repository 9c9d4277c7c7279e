package promptprocessor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/logger"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

const (
	moodleUserLookupTimeout   = 5 * time.Second
	moodleCourseLookupTimeout = 10 * time.Second
)

// MoodleAugment extends SimpleAugment with two identity-aware
// placeholders, {moodle_user} and {moodle_info_for_user}, resolved
// against a Moodle LMS webservice (spec §4.6 "LTI identity bridging").
//
// User ID extraction priority:
//  1. the x-openwebui-user-email request header, resolved to a Moodle
//     numeric user ID when the webservice is reachable
//  2. the x-openwebui-user-id request header
//  3. request metadata: user_id, lti_user_id, lis_person_sourcedid,
//     email, user, in that order
//  4. the literal string "default"
//
// A failed or unconfigured LMS lookup never fails the request — it
// falls back to the next identifier in the chain.
type MoodleAugment struct {
	APIURL     string
	Token      string
	HTTPClient *http.Client
	log        *slog.Logger
}

// NewMoodleAugment builds a MoodleAugment bound to a Moodle webservice.
// apiURL and token may be empty, in which case every lookup degrades to
// the fallback chain without making network calls.
func NewMoodleAugment(apiURL, token string) *MoodleAugment {
	return &MoodleAugment{
		APIURL:     apiURL,
		Token:      token,
		HTTPClient: &http.Client{},
		log:        logger.With("promptprocessor.moodle_augment"),
	}
}

func (m *MoodleAugment) Name() string { return "moodle_augment" }

// Process implements plugins.PromptProcessor.
func (m *MoodleAugment) Process(ctx context.Context, req plugins.OrchestrationRequest, a assistant.Assistant, ragContext string) ([]plugins.Message, error) {
	messages := req.Messages
	if len(messages) == 0 {
		return messages, nil
	}

	out := leadingMessages(a, messages)
	last := messages[len(messages)-1]

	if a.PromptTemplate == "" {
		return append(out, last), nil
	}

	template := a.PromptTemplate
	usesMoodleUser := strings.Contains(template, "{moodle_user}")
	usesMoodleInfo := strings.Contains(template, "{moodle_info_for_user}")

	var moodleUser, moodleInfo string
	if usesMoodleUser || usesMoodleInfo {
		moodleUser = m.extractUserID(ctx, req)
		if usesMoodleInfo {
			moodleInfo = m.formatCourseContext(m.coursesForUser(ctx, moodleUser))
		}
	}

	userInput := extractUserInputText(last.Content)
	augmented := fillWrapped(template, "{user_input}", userInput)
	if usesMoodleUser {
		augmented = fillLiteral(augmented, "{moodle_user}", moodleUser)
	}
	if usesMoodleInfo {
		augmented = fillLiteral(augmented, "{moodle_info_for_user}", moodleInfo)
	}
	augmented = fillWrapped(augmented, "{context}", ragContext)

	out = append(out, buildAugmentedLastMessage(last, augmented, a.Metadata.Capabilities.Vision))
	return out, nil
}

// extractUserID implements the priority chain documented on MoodleAugment.
func (m *MoodleAugment) extractUserID(ctx context.Context, req plugins.OrchestrationRequest) string {
	if email := headerValue(req.OpenWebUIHeaders, "x-openwebui-user-email"); email != "" {
		if resolved, ok := m.resolveUserIDFromEmail(ctx, email); ok {
			return resolved
		}
		return email
	}

	if id := headerValue(req.OpenWebUIHeaders, "x-openwebui-user-id"); id != "" {
		return id
	}

	for _, key := range []string{"user_id", "lti_user_id", "lis_person_sourcedid", "email", "user"} {
		if v, ok := req.Metadata[key]; ok {
			if s := fmt.Sprintf("%v", v); s != "" && s != "<nil>" {
				return s
			}
		}
	}

	return "default"
}

func headerValue(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (m *MoodleAugment) wsURL() string {
	if strings.Contains(m.APIURL, "server.php") {
		return m.APIURL
	}
	return strings.TrimRight(m.APIURL, "/") + "/webservice/rest/server.php"
}

type moodleUserRecord struct {
	ID int64 `json:"id"`
}

// resolveUserIDFromEmail maps an email to a Moodle numeric user ID via
// core_user_get_users_by_field. Returns ok=false on any failure or when
// the webservice isn't configured — the caller falls back to the email.
func (m *MoodleAugment) resolveUserIDFromEmail(ctx context.Context, email string) (string, bool) {
	if m.APIURL == "" || m.Token == "" {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, moodleUserLookupTimeout)
	defer cancel()

	q := url.Values{
		"wstoken":            {m.Token},
		"wsfunction":         {"core_user_get_users_by_field"},
		"moodlewsrestformat": {"json"},
		"field":              {"email"},
		"values[0]":          {email},
	}

	var records []moodleUserRecord
	if err := m.getJSON(ctx, q, &records); err != nil {
		m.log.Warn("unable to resolve moodle user id for email", "email", email, "error", err)
		return "", false
	}
	if len(records) == 0 {
		return "", false
	}
	return fmt.Sprintf("%d", records[0].ID), true
}

type moodleCourse struct {
	ID           int64  `json:"id"`
	FullName     string `json:"fullname"`
	ShortName    string `json:"shortname"`
	CategoryName string `json:"categoryname"`
}

type courseReport struct {
	UserID  string
	Courses []moodleCourse
	Error   string
	Success bool
}

// coursesForUser lists a user's enrolled courses via
// core_enrol_get_users_courses. Never returns an error — failures are
// carried in courseReport.Error and surfaced as prose by
// formatCourseContext, matching the legacy pipeline's "never fail the
// request over an LMS outage" contract.
func (m *MoodleAugment) coursesForUser(ctx context.Context, userID string) courseReport {
	if m.APIURL == "" || m.Token == "" {
		return courseReport{UserID: userID, Error: "moodle webservice not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, moodleCourseLookupTimeout)
	defer cancel()

	q := url.Values{
		"wstoken":            {m.Token},
		"wsfunction":         {"core_enrol_get_users_courses"},
		"moodlewsrestformat": {"json"},
		"userid":             {userID},
	}

	var courses []moodleCourse
	if err := m.getJSON(ctx, q, &courses); err != nil {
		m.log.Error("error getting moodle courses", "user_id", userID, "error", err)
		return courseReport{UserID: userID, Error: err.Error()}
	}

	return courseReport{UserID: userID, Courses: courses, Success: true}
}

func (m *MoodleAugment) getJSON(ctx context.Context, q url.Values, dest any) error {
	reqURL := m.wsURL() + "?" + q.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build moodle request: %w", err)
	}

	client := m.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call moodle webservice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("moodle webservice returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode moodle response: %w", err)
	}
	return nil
}

// formatCourseContext renders a course report into prose for
// {moodle_info_for_user}, matching the legacy pipeline's human-readable
// course listing.
func (m *MoodleAugment) formatCourseContext(report courseReport) string {
	if !report.Success {
		err := report.Error
		if err == "" {
			err = "unknown error"
		}
		return fmt.Sprintf("(Unable to retrieve course information: %s)", err)
	}
	if len(report.Courses) == 0 {
		return "(No enrolled courses found)"
	}

	lines := make([]string, 0, len(report.Courses))
	for _, c := range report.Courses {
		line := "- " + c.FullName
		if c.ShortName != "" {
			line += " (" + c.ShortName + ")"
		}
		if c.CategoryName != "" {
			line += " - " + c.CategoryName
		}
		lines = append(lines, line)
	}

	plural := "s"
	if len(report.Courses) == 1 {
		plural = ""
	}
	header := fmt.Sprintf("Enrolled in %d course%s:", len(report.Courses), plural)
	return header + "\n" + strings.Join(lines, "\n")
}
