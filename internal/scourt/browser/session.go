package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/courtsync/internal/common"
	"github.com/dmitrijs2005/courtsync/internal/logging"
	"github.com/dmitrijs2005/courtsync/internal/scourt/portal"
	"github.com/dmitrijs2005/courtsync/internal/server/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Session is a live portal tab pinned to one browser profile. Methods are
// not safe for concurrent use; the pool guarantees one user per session.
type Session struct {
	browser     *rod.Browser
	launcher    *launcher.Launcher
	page        *rod.Page
	profile     *models.Profile
	waitTimeout time.Duration
	logger      logging.Logger
}

// SavedCase is one row of the profile's saved-case list.
type SavedCase struct {
	Court        string `json:"court"`
	CourtCode    string `json:"courtCode"`
	CaseNumber   string `json:"caseNumber"`
	CaseName     string `json:"caseName"`
	EncCaseToken string `json:"encCaseToken"`
}

func (s *Session) Profile() *models.Profile { return s.profile }

func (s *Session) Close() {
	if s.page != nil {
		_ = s.page.Close()
	}
	if s.browser != nil {
		_ = s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
}

// Reset discards the current tab and opens a fresh one on the search page.
// The browser process and its profile stay alive.
func (s *Session) Reset(ctx context.Context) error {
	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}
	return s.openPortalTab(ctx)
}

func mapWaitErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", common.ErrExtractionTimeout, err)
	}
	return err
}

func (s *Session) waitVisible(page *rod.Page, sel string) error {
	el, err := page.Timeout(s.waitTimeout).Element(sel)
	if err != nil {
		return mapWaitErr(fmt.Errorf("element %s: %w", sel, err))
	}
	if err := el.WaitVisible(); err != nil {
		return mapWaitErr(fmt.Errorf("element %s: %w", sel, err))
	}
	return nil
}

func (s *Session) evalString(js string, args ...interface{}) (string, error) {
	res, err := s.page.Eval(js, args...)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (s *Session) evalBool(js string, args ...interface{}) (bool, error) {
	res, err := s.page.Eval(js, args...)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (s *Session) setValue(sel, val string) error {
	ok, err := s.evalBool(jsSetValue, sel, val)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s not present", sel)
	}
	return nil
}

func (s *Session) click(sel string) error {
	el, err := s.page.Timeout(s.waitTimeout).Element(sel)
	if err != nil {
		return mapWaitErr(fmt.Errorf("element %s: %w", sel, err))
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// SavedCases reads the profile's saved-case list, including the encrypted
// token each saved case is bound to.
func (s *Session) SavedCases(ctx context.Context) ([]SavedCase, error) {
	raw, err := s.evalString(jsSavedCases)
	if err != nil {
		return nil, fmt.Errorf("saved case read failed: %w", err)
	}
	var cases []SavedCase
	if err := json.Unmarshal([]byte(raw), &cases); err != nil {
		return nil, fmt.Errorf("saved case read failed: %w", err)
	}
	return cases, nil
}

// AffinityToken reads the profile's long-lived affinity cookie. The
// encrypted case tokens captured in this session are only valid alongside it.
func (s *Session) AffinityToken(ctx context.Context) (string, error) {
	cookies, err := s.page.Cookies(nil)
	if err != nil {
		return "", err
	}
	for _, c := range cookies {
		if c.Name == "WMONID" {
			return c.Value, nil
		}
	}
	return "", nil
}

// Search fills the search form for the given case. When the case is already
// in this profile's saved list it opens the detail view directly and no
// challenge is issued; otherwise it returns the challenge image to solve.
func (s *Session) Search(ctx context.Context, coords portal.Coordinates, partyName string) (*portal.Challenge, bool, error) {
	caseNo := portal.FormatCaseNumber(coords)

	saved, err := s.SavedCases(ctx)
	if err == nil {
		for _, sc := range saved {
			if portal.NormalizeCaseNumber(sc.CaseNumber) == caseNo {
				opened, err := s.evalBool(jsOpenSavedCase, sc.CaseNumber)
				if err == nil && opened {
					s.logger.Debug(ctx, "saved case opened without challenge", "case", caseNo)
					return nil, true, nil
				}
				break
			}
		}
	}

	if err := s.waitVisible(s.page, selCourtSelect); err != nil {
		return nil, false, err
	}
	if err := s.setValue(selCourtSelect, coords.CourtCode); err != nil {
		return nil, false, err
	}
	if err := s.setValue(selYearSelect, coords.Year); err != nil {
		return nil, false, err
	}
	if err := s.setValue(selTypeSelect, coords.CaseType); err != nil {
		return nil, false, err
	}
	if err := s.setValue(selSerialInput, coords.Serial); err != nil {
		return nil, false, err
	}
	if err := s.setValue(selPartyInput, partyName); err != nil {
		return nil, false, err
	}

	// keep the result saved to the profile so later syncs skip the gate
	checked, err := s.evalBool(jsIsChecked, selSaveCheckbox)
	if err != nil {
		return nil, false, err
	}
	if !checked {
		if err := s.click(selSaveCheckbox); err != nil {
			return nil, false, err
		}
	}

	ch, err := s.captureChallenge()
	if err != nil {
		return nil, false, err
	}
	return ch, false, nil
}

func (s *Session) captureChallenge() (*portal.Challenge, error) {
	el, err := s.page.Timeout(s.waitTimeout).Element(selCaptchaImg)
	if err != nil {
		return nil, mapWaitErr(fmt.Errorf("challenge image: %w", err))
	}
	if err := el.WaitVisible(); err != nil {
		return nil, mapWaitErr(fmt.Errorf("challenge image: %w", err))
	}
	img, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("challenge capture failed: %w", err)
	}
	return &portal.Challenge{Image: img}, nil
}

// RefreshChallenge requests a new challenge image without resubmitting the
// form.
func (s *Session) RefreshChallenge(ctx context.Context) (*portal.Challenge, error) {
	if err := s.click(selCaptchaRefresh); err != nil {
		return nil, err
	}
	time.Sleep(500 * time.Millisecond)
	return s.captureChallenge()
}

// SubmitAnswer types the solved digits and runs the search. It reports
// whether the gate was passed, or that the portal rejected the digits, in
// which case the caller should refresh and retry.
func (s *Session) SubmitAnswer(ctx context.Context, answer string) (ok bool, mismatch bool, err error) {
	if err := s.setValue(selCaptchaInput, answer); err != nil {
		return false, false, err
	}
	if err := s.click(selSearchButton); err != nil {
		return false, false, err
	}

	deadline := time.Now().Add(s.waitTimeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return false, false, err
		}

		alert, err := s.evalString(jsReadLastAlert)
		if err != nil {
			return false, false, err
		}
		if alert != "" {
			if isMismatchMessage(alert) {
				_, _ = s.evalString(jsClearValue, selCaptchaInput)
				return false, true, nil
			}
			return false, false, fmt.Errorf("portal rejected search: %s", alert)
		}

		has, err := s.evalBool(jsHasResultRows)
		if err != nil {
			return false, false, err
		}
		if has {
			return true, false, nil
		}

		time.Sleep(300 * time.Millisecond)
	}
	return false, false, fmt.Errorf("%w: no search outcome within %s", common.ErrExtractionTimeout, s.waitTimeout)
}

// OpenResult opens the detail view of the freshly searched case from the
// result grid.
func (s *Session) OpenResult(ctx context.Context, coords portal.Coordinates) error {
	caseNo := portal.FormatCaseNumber(coords)
	opened, err := s.evalBool(jsOpenSavedCase, caseNo)
	if err != nil {
		return err
	}
	if !opened {
		return fmt.Errorf("%w: case %s not in result grid", common.ErrExtractionTimeout, caseNo)
	}
	return nil
}

// ExtractBasicInfo scrapes the general-information table of the open detail
// view. It polls until the table renders or the wait budget runs out.
func (s *Session) ExtractBasicInfo(ctx context.Context) (map[string]string, error) {
	deadline := time.Now().Add(s.waitTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := s.evalString(jsExtractBasicInfo)
		if err != nil {
			return nil, err
		}
		info := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			return nil, fmt.Errorf("basic info parse failed: %w", err)
		}
		if len(info) > 0 {
			return info, nil
		}

		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: basic info did not render", common.ErrExtractionTimeout)
		}
		time.Sleep(300 * time.Millisecond)
	}
}

type extractedEntries struct {
	Hearings []struct {
		Date     string `json:"date"`
		Time     string `json:"time"`
		Type     string `json:"type"`
		Location string `json:"location"`
		Result   string `json:"result"`
	} `json:"hearings"`
	Progress []struct {
		Date    string `json:"date"`
		Content string `json:"content"`
		Result  string `json:"result"`
	} `json:"progress"`
	Documents []struct {
		Date    string `json:"date"`
		Content string `json:"content"`
	} `json:"documents"`
	Related []struct {
		CaseNumber string `json:"caseNumber"`
		CaseName   string `json:"caseName"`
		Relation   string `json:"relation"`
	} `json:"related"`
}

// ExtractProgress scrapes the hearing, progress, document and related-case
// tables of the open detail view into the shared row layout.
func (s *Session) ExtractProgress(ctx context.Context) (*portal.RawPayload, error) {
	raw, err := s.evalString(jsExtractEntries)
	if err != nil {
		return nil, err
	}
	var entries extractedEntries
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("entry parse failed: %w", err)
	}

	payload := &portal.RawPayload{}
	for _, h := range entries.Hearings {
		payload.Hearings = append(payload.Hearings, map[string]string{
			portal.RowDate:     h.Date,
			portal.RowTime:     h.Time,
			portal.RowType:     h.Type,
			portal.RowLocation: h.Location,
			portal.RowResult:   h.Result,
		})
	}
	for _, p := range entries.Progress {
		payload.Progress = append(payload.Progress, map[string]string{
			portal.RowDate:    p.Date,
			portal.RowContent: p.Content,
			portal.RowResult:  p.Result,
		})
	}
	for _, d := range entries.Documents {
		payload.Documents = append(payload.Documents, map[string]string{
			portal.RowDate:    d.Date,
			portal.RowContent: d.Content,
		})
	}
	for _, rc := range entries.Related {
		payload.RelatedCases = append(payload.RelatedCases, map[string]string{
			portal.RowCaseNumber: rc.CaseNumber,
			portal.RowCaseName:   rc.CaseName,
			portal.RowRelation:   rc.Relation,
		})
	}
	return payload, nil
}

// isMismatchMessage reports whether an alert is the portal's wrong-digits
// banner rather than some other rejection.
func isMismatchMessage(msg string) bool {
	return strings.Contains(msg, "보안문자") && strings.Contains(msg, "일치하지")
}
