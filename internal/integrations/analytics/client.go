// Package analytics queries the Google Analytics Data API for user counts.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/option"

	"portfolio-functions/internal/domain"
)

// reportAPI is the single Data API call the client makes.
type reportAPI interface {
	RunReport(ctx context.Context, property string, req *analyticsdata.RunReportRequest) (*analyticsdata.RunReportResponse, error)
}

type serviceAPI struct {
	svc *analyticsdata.Service
}

func (s serviceAPI) RunReport(ctx context.Context, property string, req *analyticsdata.RunReportRequest) (*analyticsdata.RunReportResponse, error) {
	return s.svc.Properties.RunReport(property, req).Context(ctx).Do()
}

// Client runs reports against one GA4 property.
type Client struct {
	api      reportAPI
	property string
}

// New creates a Client over an existing report API.
func New(api reportAPI, propertyID string) (*Client, error) {
	if api == nil {
		return nil, errors.New("analytics: api must not be nil")
	}
	propertyID = strings.TrimSpace(propertyID)
	if propertyID == "" {
		return nil, errors.New("analytics: property id must not be empty")
	}
	if !strings.HasPrefix(propertyID, "properties/") {
		propertyID = "properties/" + propertyID
	}
	return &Client{api: api, property: propertyID}, nil
}

// NewFromCredentials builds a Client authenticated with a service-account
// JSON key.
func NewFromCredentials(ctx context.Context, credentialsJSON, propertyID string) (*Client, error) {
	credentialsJSON = strings.TrimSpace(credentialsJSON)
	if credentialsJSON == "" {
		return nil, errors.New("analytics: credentials must not be empty")
	}
	if !json.Valid([]byte(credentialsJSON)) {
		return nil, errors.New("analytics: credentials are not valid JSON")
	}
	svc, err := analyticsdata.NewService(ctx,
		option.WithCredentialsJSON([]byte(credentialsJSON)),
		option.WithScopes(analyticsdata.AnalyticsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("analytics: create service: %w", err)
	}
	return New(serviceAPI{svc: svc}, propertyID)
}

// Property returns the fully qualified property name.
func (c *Client) Property() string {
	return c.property
}

// ActiveUsers returns the property-wide activeUsers metric for the range.
func (c *Client) ActiveUsers(ctx context.Context, r domain.DateRange) (int64, error) {
	resp, err := c.api.RunReport(ctx, c.property, &analyticsdata.RunReportRequest{
		DateRanges: dateRanges(r),
		Metrics:    []*analyticsdata.Metric{{Name: "activeUsers"}},
	})
	if err != nil {
		return 0, fmt.Errorf("analytics: active users report: %w", err)
	}
	if resp == nil || len(resp.Rows) == 0 || len(resp.Rows[0].MetricValues) == 0 {
		return 0, nil
	}
	n, err := parseMetric(resp.Rows[0].MetricValues[0])
	if err != nil {
		return 0, fmt.Errorf("analytics: active users report: %w", err)
	}
	return n, nil
}

// UsersByHost returns totalUsers per hostName for the range.
func (c *Client) UsersByHost(ctx context.Context, r domain.DateRange) (map[string]int64, error) {
	resp, err := c.api.RunReport(ctx, c.property, &analyticsdata.RunReportRequest{
		DateRanges: dateRanges(r),
		Dimensions: []*analyticsdata.Dimension{{Name: "hostName"}},
		Metrics:    []*analyticsdata.Metric{{Name: "totalUsers"}},
	})
	if err != nil {
		return nil, fmt.Errorf("analytics: users by host report: %w", err)
	}
	out := make(map[string]int64)
	if resp == nil {
		return out, nil
	}
	for _, row := range resp.Rows {
		if row == nil || len(row.DimensionValues) == 0 || len(row.MetricValues) == 0 {
			continue
		}
		n, err := parseMetric(row.MetricValues[0])
		if err != nil {
			return nil, fmt.Errorf("analytics: users by host report: %w", err)
		}
		out[row.DimensionValues[0].Value] += n
	}
	return out, nil
}

func dateRanges(r domain.DateRange) []*analyticsdata.DateRange {
	return []*analyticsdata.DateRange{{StartDate: r.StartDate, EndDate: r.EndDate}}
}

func parseMetric(v *analyticsdata.MetricValue) (int64, error) {
	if v == nil || v.Value == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse metric %q: %w", v.Value, err)
	}
	return n, nil
}
