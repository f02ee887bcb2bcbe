package emergency

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"stealthcompany.com/erdashboard/internal/department"
	"stealthcompany.com/erdashboard/internal/metrics"
	"stealthcompany.com/erdashboard/internal/queue"
	"stealthcompany.com/erdashboard/internal/waittime"
)

const queuePath = "filaDeAtendimentoProntoSocorroV2"

// JSONFetcher retrieves a JSON document from the hospital API
type JSONFetcher interface {
	FetchJSON(ctx context.Context, url string) (json.RawMessage, error)
}

// Assembler builds the summary of one department from its attendance and triage queues
type Assembler struct {
	fetcher JSONFetcher
	baseURL string
	calc    *waittime.Calculator
}

// NewAssembler creates an assembler reading from the API rooted at baseURL
func NewAssembler(fetcher JSONFetcher, baseURL string, calc *waittime.Calculator) *Assembler {
	if calc == nil {
		calc = waittime.NewCalculator(nil, nil)
	}
	return &Assembler{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		calc:    calc,
	}
}

// AttendanceURL is the treatment queue endpoint of a department
func AttendanceURL(baseURL string, externalID int) string {
	return strings.TrimRight(baseURL, "/") + "/" + queuePath + "/" + strconv.Itoa(externalID) + "/Pronto%20Socorro"
}

// TriageURL is the triage queue endpoint of a department
func TriageURL(baseURL string, externalID int) string {
	return strings.TrimRight(baseURL, "/") + "/" + queuePath + "/" + strconv.Itoa(externalID) + "/Triagem"
}

// Assemble fetches both queues of d concurrently and reduces them to one summary.
// Both fetches must succeed; the first failure cancels the other and is returned.
func (a *Assembler) Assemble(ctx context.Context, d department.Department) (DepartmentSummary, error) {
	startTime := time.Now()

	var attendance, triage json.RawMessage
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		attendance, err = a.fetcher.FetchJSON(gctx, AttendanceURL(a.baseURL, d.ExternalID))
		if err != nil {
			return fmt.Errorf("attendance queue: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		triage, err = a.fetcher.FetchJSON(gctx, TriageURL(a.baseURL, d.ExternalID))
		if err != nil {
			return fmt.Errorf("triage queue: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		metrics.RecordDepartmentAssembly(string(d.Code), "failed", startTime)
		return DepartmentSummary{}, fmt.Errorf("failed to assemble %s: %w", d, err)
	}

	summary := a.summarize(d, parseQueueResponse(attendance), parseQueueResponse(triage))

	metrics.RecordDepartmentAssembly(string(d.Code), "success", startTime)
	log.Debug().
		Str("department", string(d.Code)).
		Int("on_screen", summary.PatientsOnScreen).
		Int("first_attendance", summary.FirstAttendance).
		Int("triage", summary.TriageCount).
		Dur("duration", time.Since(startTime)).
		Msg("Assembled department summary")

	return summary, nil
}

func (a *Assembler) summarize(d department.Department, attendance, triage queueResponse) DepartmentSummary {
	loc := a.calc.Location()
	processed := queue.Aggregate(attendance.Patients, loc)

	summary := DepartmentSummary{
		Department:       d.Code,
		Name:             d.DisplayName,
		PatientsOnScreen: attendance.OnScreen,
		FirstAttendance:  processed.Total,
		PriorityLevels: PriorityLevels{
			Purple:     processed.Bucket(queue.Purple).Count,
			Yellow:     processed.Bucket(queue.Yellow).Count,
			Green:      processed.Bucket(queue.Green).Count,
			PurpleTime: a.bucketWait(processed.Bucket(queue.Purple)),
			YellowTime: a.bucketWait(processed.Bucket(queue.Yellow)),
			GreenTime:  a.bucketWait(processed.Bucket(queue.Green)),
		},
		TriageTime: waittime.Zero,
	}

	oldest, triageCount, ok := queue.Oldest(triage.Patients, loc)
	summary.TriageCount = triageCount
	if ok {
		summary.TriageTime = a.calc.Elapsed(oldest)
	}

	return summary
}

func (a *Assembler) bucketWait(b queue.Bucket) string {
	if b.Count == 0 {
		return waittime.Zero
	}
	return a.calc.Elapsed(b.OldestArrival)
}

// queueResponse is the tolerant view of one queue endpoint payload
type queueResponse struct {
	OnScreen int
	Patients json.RawMessage
}

// parseQueueResponse reads emTela and pacientes, defaulting each when absent or malformed
func parseQueueResponse(raw json.RawMessage) queueResponse {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return queueResponse{}
	}

	return queueResponse{
		OnScreen: nonNegativeInt(fields["emTela"]),
		Patients: fields["pacientes"],
	}
}

// nonNegativeInt reads a patient count. Only whole numbers in [0, MaxInt32] are
// counts; fractions, negatives and overflowing values are malformed and read as 0.
func nonNegativeInt(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	if n < 0 || n > math.MaxInt32 || n != math.Trunc(n) {
		return 0
	}
	return int(n)
}
