package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduling-assistant/pkg/logging"
)

const (
	defaultTimeout = 10 * time.Second
	defaultUnitID  = "1"

	bookingStatusScheduled = "AGENDADO"
)

// Client is a REST client for the clinic scheduling API. Wire field names
// follow the API (especialidade, profissionais, horaInicio, ...).
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiToken   string
	unitID     string
	logger     *logging.Logger
}

// ClientConfig configures the directory client.
type ClientConfig struct {
	BaseURL  string
	APIToken string
	UnitID   string
	Timeout  time.Duration
}

// NewClient creates a directory client.
func NewClient(cfg ClientConfig, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	unitID := strings.TrimSpace(cfg.UnitID)
	if unitID == "" {
		unitID = defaultUnitID
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiToken: cfg.APIToken,
		unitID:   unitID,
		logger:   logger,
	}
}

var _ Directory = (*Client)(nil)

type apiSpecialty struct {
	ID   json.Number `json:"id"`
	Name string      `json:"especialidade"`
}

type apiProfessional struct {
	ID            json.Number    `json:"id"`
	Name          string         `json:"nome"`
	Prefix        string         `json:"prefixo"`
	Specialties   []apiSpecialty `json:"especialidades"`
	CouncilNumber string         `json:"numeroConselho"`
}

type apiTimeSlot struct {
	Start string `json:"horaInicio"`
	End   string `json:"horaFim"`
}

type apiRef struct {
	ID json.Number `json:"id"`
}

type apiBookingRequest struct {
	Date         string  `json:"data"`
	Start        string  `json:"horaInicio"`
	End          string  `json:"horaFim"`
	Name         string  `json:"nome"`
	Phone        string  `json:"telefonePrincipal"`
	Status       string  `json:"situacao"`
	Professional apiRef  `json:"profissionalSaude"`
	Specialty    *apiRef `json:"especialidade,omitempty"`
	Unit         apiRef  `json:"unidade"`
}

type apiBookingResponse struct {
	ID     json.Number `json:"id"`
	Status string      `json:"situacao"`
}

// ListSpecialties returns every specialty offered by the clinic.
func (c *Client) ListSpecialties(ctx context.Context) ([]Specialty, error) {
	var out []apiSpecialty
	if err := c.do(ctx, http.MethodGet, "/especialidades", nil, nil, &out); err != nil {
		return nil, err
	}
	specialties := make([]Specialty, 0, len(out))
	for _, s := range out {
		specialties = append(specialties, Specialty{ID: s.ID.String(), Name: strings.TrimSpace(s.Name)})
	}
	return specialties, nil
}

// ListProfessionals returns the active professionals.
func (c *Client) ListProfessionals(ctx context.Context) ([]Professional, error) {
	var out []apiProfessional
	if err := c.do(ctx, http.MethodGet, "/profissionais", url.Values{"status": {"true"}}, nil, &out); err != nil {
		return nil, err
	}
	pros := make([]Professional, 0, len(out))
	for _, p := range out {
		pro := Professional{ID: p.ID.String(), Name: strings.TrimSpace(p.Name), Prefix: strings.TrimSpace(p.Prefix)}
		for _, s := range p.Specialties {
			pro.Specialties = append(pro.Specialties, Specialty{ID: s.ID.String(), Name: strings.TrimSpace(s.Name)})
		}
		pros = append(pros, pro)
	}
	return pros, nil
}

// ListProfessionalsBySpecialty returns active professionals attending the specialty.
func (c *Client) ListProfessionalsBySpecialty(ctx context.Context, specialty string) ([]Professional, error) {
	pros, err := c.ListProfessionals(ctx)
	if err != nil {
		return nil, err
	}
	return FilterBySpecialty(pros, specialty), nil
}

// ListAvailableDates returns the dates (YYYY-MM-DD) with openings in the given month.
func (c *Client) ListAvailableDates(ctx context.Context, professionalID string, month time.Month, year int) ([]string, error) {
	if strings.TrimSpace(professionalID) == "" {
		return nil, fmt.Errorf("scheduling: professional id required: %w", ErrNotFound)
	}
	query := url.Values{
		"mes": {strconv.Itoa(int(month))},
		"ano": {strconv.Itoa(year)},
	}
	var out []string
	path := "/profissionais/" + url.PathEscape(professionalID) + "/datas-disponiveis"
	if err := c.do(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(out))
	for _, d := range out {
		if _, err := time.Parse("2006-01-02", strings.TrimSpace(d)); err != nil {
			c.logger.Warn("scheduling: skipping malformed date", "date", d)
			continue
		}
		dates = append(dates, strings.TrimSpace(d))
	}
	return dates, nil
}

// ListAvailableTimes returns the openings on a single date.
func (c *Client) ListAvailableTimes(ctx context.Context, professionalID, date string) ([]TimeSlot, error) {
	if strings.TrimSpace(professionalID) == "" {
		return nil, fmt.Errorf("scheduling: professional id required: %w", ErrNotFound)
	}
	var out []apiTimeSlot
	path := "/profissionais/" + url.PathEscape(professionalID) + "/horarios-disponiveis"
	if err := c.do(ctx, http.MethodGet, path, url.Values{"data": {date}}, nil, &out); err != nil {
		return nil, err
	}
	slots := make([]TimeSlot, 0, len(out))
	for _, s := range out {
		start := shortClock(s.Start)
		if start == "" {
			continue
		}
		end := shortClock(s.End)
		if end == "" {
			end = DefaultEndTime(start)
		}
		slots = append(slots, TimeSlot{Date: date, StartTime: start, EndTime: end})
	}
	return slots, nil
}

// SubmitBooking books the slot. A 409 maps to ErrSlotUnavailable and a 404 to ErrNotFound.
func (c *Client) SubmitBooking(ctx context.Context, req BookingRequest) (BookingConfirmation, error) {
	if strings.TrimSpace(req.ProfessionalID) == "" {
		return BookingConfirmation{}, fmt.Errorf("scheduling: professional id required: %w", ErrNotFound)
	}
	end := req.EndTime
	if strings.TrimSpace(end) == "" {
		end = DefaultEndTime(req.StartTime)
	}
	payload := apiBookingRequest{
		Date:         req.Date,
		Start:        req.StartTime + ":00",
		End:          end + ":00",
		Name:         req.PatientName,
		Phone:        req.Phone,
		Status:       bookingStatusScheduled,
		Professional: apiRef{ID: json.Number(req.ProfessionalID)},
		Unit:         apiRef{ID: json.Number(c.unitID)},
	}
	if strings.TrimSpace(req.SpecialtyID) != "" {
		payload.Specialty = &apiRef{ID: json.Number(req.SpecialtyID)}
	}

	var out apiBookingResponse
	if err := c.do(ctx, http.MethodPost, "/agendamentos", nil, payload, &out); err != nil {
		return BookingConfirmation{}, err
	}
	return BookingConfirmation{ID: out.ID.String(), Status: out.Status}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	if c.baseURL == "" {
		return fmt.Errorf("scheduling: missing base url")
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("scheduling: marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("scheduling: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("scheduling: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("scheduling: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("scheduling: api error", "method", method, "path", path, "status", resp.StatusCode)
		return &APIError{StatusCode: resp.StatusCode, Body: msg}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("scheduling: unmarshal response: %w", err)
	}
	return nil
}

// shortClock trims "08:00:00" to "08:00".
func shortClock(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 5 && s[2] == ':' {
		return s[:5]
	}
	if t, err := time.Parse("15:04", s); err == nil {
		return t.Format("15:04")
	}
	return ""
}
