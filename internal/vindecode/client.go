// Package vindecode fills missing year/make/model/trim from the public VIN
// decode service. One attempt, short deadline, and a nil result on any
// failure: decoding is a best-effort last step, never a blocker.
package vindecode

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
)

// ErrMalformedVIN is returned for input that is not a 17-character VIN.
var ErrMalformedVIN = errors.New("malformed vin")

// Decoded carries the subset of decode attributes the pipeline uses.
type Decoded struct {
	Year  int
	Make  string
	Model string
	Trim  string
}

type decodeResponse struct {
	Results []struct {
		Variable string `json:"Variable"`
		Value    string `json:"Value"`
	} `json:"Results"`
}

type Client struct {
	baseURL string
	http    *resty.Client
	logger  *slog.Logger
}

func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    resty.New().SetTimeout(timeout).SetRetryCount(0),
		logger:  logger,
	}
}

// Decode looks up vin. It returns (nil, nil) on transport failure or an
// unusable response: callers treat an absent decode as "nothing learned".
func (c *Client) Decode(ctx context.Context, vin string) (*Decoded, error) {
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if !domain.ValidVIN(vin) {
		return nil, ErrMalformedVIN
	}

	var body decodeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("format", "json").
		SetResult(&body).
		Get(c.baseURL + "/DecodeVin/" + vin)
	if err != nil {
		c.logger.Debug("vin_decode_failed",
			slog.String("vin", vin),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	if resp.StatusCode() != 200 || len(body.Results) == 0 {
		return nil, nil
	}

	d := &Decoded{}
	for _, row := range body.Results {
		value := strings.TrimSpace(row.Value)
		if value == "" || strings.EqualFold(value, "null") {
			continue
		}
		switch row.Variable {
		case "Model Year":
			if y, err := strconv.Atoi(value); err == nil {
				d.Year = y
			}
		case "Make":
			d.Make = titleCase(value)
		case "Model":
			d.Model = titleCase(value)
		case "Trim":
			d.Trim = titleCase(value)
		}
	}
	if d.Year == 0 && d.Make == "" && d.Model == "" && d.Trim == "" {
		return nil, nil
	}
	return d, nil
}

// Enrich merges decoded values onto v. Only absent fields are filled;
// anything the listing already said is kept.
func Enrich(v *domain.ParsedVehicle, d *Decoded) {
	if d == nil {
		return
	}
	if v.Year == 0 && d.Year != 0 {
		v.Year = d.Year
	}
	if v.Make == "" && d.Make != "" {
		v.Make = d.Make
	}
	if v.Model == "" && d.Model != "" {
		v.Model = d.Model
	}
	if v.Trim == "" && d.Trim != "" {
		v.Trim = d.Trim
	}
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
