package emergency

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"stealthcompany.com/erdashboard/internal/department"
	"stealthcompany.com/erdashboard/internal/metrics"
	"stealthcompany.com/erdashboard/internal/waittime"
)

// PlaceholderBaseURL is the value shipped in sample configuration files
const PlaceholderBaseURL = "YOUR_API_URL"

// Source tells whether a result came from the hospital API or the demo dataset
type Source string

const (
	SourceLive Source = "live"
	SourceMock Source = "mock"
)

// DepartmentAssembler produces the summary of a single department
type DepartmentAssembler interface {
	Assemble(ctx context.Context, d department.Department) (DepartmentSummary, error)
}

// DepartmentFailure records why a department was replaced by its empty summary
type DepartmentFailure struct {
	Department department.Code
	Err        error
}

// Result is the outcome of one fan-out over all departments
type Result struct {
	Source    Source
	Summaries []DepartmentSummary
	Failures  []DepartmentFailure
}

// Service fans out over every configured department. It never fails: departments
// that cannot be assembled get an empty summary and an unusable configuration
// yields the demo dataset.
type Service struct {
	assembler   DepartmentAssembler
	departments []department.Department
	configured  bool
}

// NewService wires a service for the API at baseURL using the default departments
func NewService(baseURL string, fetcher JSONFetcher, calc *waittime.Calculator) *Service {
	return NewServiceWithAssembler(NewAssembler(fetcher, baseURL, calc), department.Defaults(), IsConfigured(baseURL))
}

// NewServiceWithAssembler wires a service around an existing assembler
func NewServiceWithAssembler(assembler DepartmentAssembler, departments []department.Department, configured bool) *Service {
	if departments == nil {
		departments = department.Defaults()
	}
	return &Service{
		assembler:   assembler,
		departments: departments,
		configured:  configured,
	}
}

// IsConfigured reports whether baseURL points at a real API rather than being
// empty or still holding the placeholder
func IsConfigured(baseURL string) bool {
	baseURL = strings.TrimSpace(baseURL)
	return baseURL != "" && !strings.Contains(baseURL, PlaceholderBaseURL)
}

// FetchAll returns one summary per configured department, in configured order
func (s *Service) FetchAll(ctx context.Context) (result Result) {
	if !s.configured {
		log.Warn().Msg("Hospital API base URL is not configured, using mock data")
		metrics.RecordFallback("unconfigured")
		return mockResult()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("panic", fmt.Sprint(r)).
				Msg("Department fan-out failed, returning mock data")
			metrics.RecordFallback("fanout_failed")
			result = mockResult()
		}
	}()

	if s.assembler == nil {
		log.Error().Msg("No department assembler configured, returning mock data")
		metrics.RecordFallback("fanout_failed")
		return mockResult()
	}

	summaries := make([]DepartmentSummary, len(s.departments))
	errs := make([]error, len(s.departments))

	var g errgroup.Group
	for i, d := range s.departments {
		g.Go(func() error {
			summaries[i], errs[i] = s.assembleSafely(ctx, d)
			return nil
		})
	}
	_ = g.Wait()

	result = Result{Source: SourceLive, Summaries: summaries}
	for i, d := range s.departments {
		if errs[i] == nil {
			recordQueueSizes(summaries[i])
			continue
		}

		log.Error().
			Err(errs[i]).
			Str("department", string(d.Code)).
			Int("external_id", d.ExternalID).
			Msg("Failed to fetch department data, using empty summary")
		metrics.RecordFallback("department_failed")

		summaries[i] = EmptySummary(d)
		result.Failures = append(result.Failures, DepartmentFailure{Department: d.Code, Err: errs[i]})
	}

	return result
}

// assembleSafely turns a panic inside one department's assembly into that
// department's error so it cannot take down its siblings
func (s *Service) assembleSafely(ctx context.Context, d department.Department) (summary DepartmentSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic assembling %s: %v", d, r)
		}
	}()
	return s.assembler.Assemble(ctx, d)
}

func mockResult() Result {
	return Result{Source: SourceMock, Summaries: MockSummaries()}
}

func recordQueueSizes(s DepartmentSummary) {
	metrics.SetQueueSizes(metrics.QueueSizes{
		Department:       string(s.Department),
		PatientsOnScreen: s.PatientsOnScreen,
		Purple:           s.PriorityLevels.Purple,
		Yellow:           s.PriorityLevels.Yellow,
		Green:            s.PriorityLevels.Green,
		Triage:           s.TriageCount,
	})
}
