package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/dmitrijs2005/courtsync/internal/logging"
	"github.com/dmitrijs2005/courtsync/internal/scourt/taxonomy"
)

const DefaultBaseURL = "https://ssgo.scourt.go.kr"

const defaultHTTPTimeout = 30 * time.Second

// Row keys used by both the browser extractor and this client, so payloads
// from either path normalize identically.
const (
	RowDate       = "date"
	RowTime       = "time"
	RowType       = "type"
	RowLocation   = "location"
	RowResult     = "result"
	RowContent    = "content"
	RowCaseNumber = "caseNumber"
	RowCaseName   = "caseName"
	RowRelation   = "relation"
)

// The structured endpoint rejects serials that are not zero-padded to the
// portal's fixed width.
const endpointSerialWidth = 7

// Session carries the two cookies the structured endpoint requires: the
// short-lived server session and the long-lived affinity cookie the
// encrypted case token is bound to.
type Session struct {
	JSessionID    string
	AffinityToken string
}

// Client talks to the portal's structured JSON endpoint directly, without a
// browser. It can only read cases whose encrypted token was captured during
// an earlier browser search.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  logging.Logger
}

func NewClient(baseURL string, logger logging.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: defaultHTTPTimeout},
		logger:  logger,
	}
}

var (
	jsessionRe = regexp.MustCompile(`JSESSIONID=([^;]+)`)
	affinityRe = regexp.MustCompile(`WMONID=([^;]+)`)
)

// InitSession obtains a fresh server session. When affinityToken is set it
// is presented on the request so the portal keeps the existing binding;
// otherwise the portal issues a new one.
func (c *Client) InitSession(ctx context.Context, affinityToken string) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ssgo/index.on?cortId=www", nil)
	if err != nil {
		return nil, err
	}
	if affinityToken != "" {
		req.Header.Set("Cookie", "WMONID="+affinityToken)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session init failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	s := &Session{AffinityToken: affinityToken}
	for _, sc := range resp.Header.Values("Set-Cookie") {
		if m := jsessionRe.FindStringSubmatch(sc); m != nil {
			s.JSessionID = m[1]
		}
		if m := affinityRe.FindStringSubmatch(sc); m != nil && s.AffinityToken == "" {
			s.AffinityToken = m[1]
		}
	}
	if s.JSessionID == "" {
		return nil, fmt.Errorf("session init failed: no session cookie issued")
	}
	return s, nil
}

// endpointModule maps a case family to the portal module serving it.
func endpointModule(category taxonomy.Category) string {
	switch category {
	case taxonomy.CategoryFamily:
		return "ssgo102"
	case taxonomy.CategoryCriminal:
		return "ssgo10g"
	case taxonomy.CategoryProvisional:
		return "ssgo105"
	case taxonomy.CategoryEnforcement:
		return "ssgo10a"
	case taxonomy.CategoryInsolvency:
		return "ssgo107"
	case taxonomy.CategoryDemandNote:
		return "ssgo10c"
	default:
		// civil and administrative cases share the civil module
		return "ssgo101"
	}
}

func (c *Client) post(ctx context.Context, s *Session, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("Cookie", fmt.Sprintf("WMONID=%s; JSESSIONID=%s", s.AffinityToken, s.JSessionID))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("portal error: %s (%s)", resp.Status, string(raw))
	}
	return json.Unmarshal(raw, out)
}

type generalResponse struct {
	Data struct {
		CsNo      string `json:"csNo"`
		CsNm      string `json:"csNm"`
		CortNm    string `json:"cortNm"`
		CsDvsNm   string `json:"csDvsNm"`
		PrcdStsNm string `json:"prcdStsNm"`
		AplNm     string `json:"aplNm"`
		RspNm     string `json:"rspNm"`
		JdgNm     string `json:"jdgNm"`
		RcptDt    string `json:"rcptDt"`
		EndDt     string `json:"endDt"`
		EndRslt   string `json:"endRslt"`
		CfrmDt    string `json:"cfrmDt"`
		Hearings  []struct {
			TrmDt    string `json:"trmDt"`
			TrmHm    string `json:"trmHm"`
			TrmNm    string `json:"trmNm"`
			TrmPntNm string `json:"trmPntNm"`
			Rslt     string `json:"rslt"`
		} `json:"hearings"`
	} `json:"data"`
}

type progressResponse struct {
	Data struct {
		Progress []struct {
			PrcdDt   string `json:"prcdDt"`
			PrcdNm   string `json:"prcdNm"`
			PrcdRslt string `json:"prcdRslt"`
		} `json:"progress"`
	} `json:"data"`
}

// formatPortalDate converts YYYYMMDD to YYYY.MM.DD; other shapes pass through.
func formatPortalDate(s string) string {
	if len(s) == 8 {
		return s[:4] + "." + s[4:6] + "." + s[6:]
	}
	return s
}

// formatPortalTime converts HHMM to HH:MM; other shapes pass through.
func formatPortalTime(s string) string {
	if len(s) == 4 {
		return s[:2] + ":" + s[2:]
	}
	return s
}

// FetchCase reads a stored case through the structured endpoint using its
// encrypted token. The general and progress documents are fetched in two
// calls, mirroring the portal's own tab layout. The plaintiff/defendant
// labels in BasicInfo follow the case family's taxonomy.
func (c *Client) FetchCase(ctx context.Context, s *Session, coords Coordinates, encCaseToken string) (*RawPayload, error) {
	module := endpointModule(taxonomy.ClassifyCaseType(coords.CaseType).Category)
	c.logger.Debug(ctx, "structured endpoint fetch", "module", module, "case", FormatCaseNumber(coords))
	reqBody := map[string]string{
		"encCsNo":  encCaseToken,
		"cortCd":   coords.CourtCode,
		"csYr":     coords.Year,
		"csDvsCd":  coords.CaseType,
		"csSerial": PadSerial(coords.Serial, endpointSerialWidth),
	}

	var general generalResponse
	if err := c.post(ctx, s, fmt.Sprintf("/ssgo/%s/selectHmpgFmlyCsGnrlCtt.on", module), reqBody, &general); err != nil {
		return nil, fmt.Errorf("general fetch failed: %w", err)
	}

	var progress progressResponse
	if err := c.post(ctx, s, fmt.Sprintf("/ssgo/%s/selectHmpgFmlyCsProgCtt.on", module), reqBody, &progress); err != nil {
		return nil, fmt.Errorf("progress fetch failed: %w", err)
	}

	labels := taxonomy.PartyLabels(coords.CaseType)
	d := general.Data

	payload := &RawPayload{BasicInfo: map[string]string{}}
	put := func(k, v string) {
		if v != "" {
			payload.BasicInfo[k] = v
		}
	}
	put("사건번호", d.CsNo)
	put("사건명", d.CsNm)
	put("법원", d.CortNm)
	put("사건구분", d.CsDvsNm)
	put("진행상태", d.PrcdStsNm)
	put("재판부", d.JdgNm)
	put("접수일", formatPortalDate(d.RcptDt))
	put("종국일", formatPortalDate(d.EndDt))
	put("종국결과", d.EndRslt)
	put("확정일", formatPortalDate(d.CfrmDt))
	put(taxonomy.PrimaryLabel(labels.Plaintiff), d.AplNm)
	put(taxonomy.PrimaryLabel(labels.Defendant), d.RspNm)

	for _, h := range d.Hearings {
		payload.Hearings = append(payload.Hearings, map[string]string{
			RowDate:     formatPortalDate(h.TrmDt),
			RowTime:     formatPortalTime(h.TrmHm),
			RowType:     h.TrmNm,
			RowLocation: h.TrmPntNm,
			RowResult:   h.Rslt,
		})
	}
	for _, p := range progress.Data.Progress {
		payload.Progress = append(payload.Progress, map[string]string{
			RowDate:    formatPortalDate(p.PrcdDt),
			RowContent: p.PrcdNm,
			RowResult:  p.PrcdRslt,
		})
	}

	return payload, nil
}
