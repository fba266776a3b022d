package services

import (
	"context"
	"testing"
	"time"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
)

type stubHealthRepo struct {
	report domain.SystemHealthReport
	err    error
}

func (s stubHealthRepo) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

func TestHealthReportEnrichesBuildInfo(t *testing.T) {
	startedAt := testNow.Add(-90 * time.Minute)
	service, err := NewSystemService(SystemServiceDeps{
		HealthRepository: stubHealthRepo{report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
			},
		}},
		Clock: fixedClock(testNow),
		Build: BuildInfo{
			Version:     "1.4.0",
			CommitSHA:   "abc1234",
			Environment: "staging",
			StartedAt:   startedAt,
		},
	})
	if err != nil {
		t.Fatalf("NewSystemService returned error: %v", err)
	}

	report, err := service.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport returned error: %v", err)
	}
	if report.Version != "1.4.0" || report.CommitSHA != "abc1234" || report.Environment != "staging" {
		t.Fatalf("expected build info applied, got %+v", report)
	}
	if report.Uptime != 90*time.Minute {
		t.Fatalf("expected uptime 90m, got %v", report.Uptime)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected OK status, got %s", report.Status)
	}
	if !report.GeneratedAt.Equal(testNow) {
		t.Fatalf("expected generated at %v, got %v", testNow, report.GeneratedAt)
	}
}

func TestHealthReportDerivesWorstStatus(t *testing.T) {
	service, err := NewSystemService(SystemServiceDeps{
		HealthRepository: stubHealthRepo{report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
				"pubsub":    {Status: domain.HealthStatusError, Error: "deadline exceeded"},
			},
		}},
		Clock: fixedClock(testNow),
	})
	if err != nil {
		t.Fatalf("NewSystemService returned error: %v", err)
	}

	report, err := service.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport returned error: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected ERROR status, got %s", report.Status)
	}
}
