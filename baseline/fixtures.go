/*
fixtures.go - Canned baseline payloads for demos and offline runs

PURPOSE:
  Stands in for the remote computation service when none is configured.
  Each fixture is the payload one employee would receive, so every engine
  path (rated lines, fixed lines, notes, refusals, total mismatch) can be
  exercised from the API without a live service.

AVAILABLE FIXTURES:
  EMP-001:  Worked Day over the 30-day cap + fixed leave encashment
  EMP-002:  Leave encashment failed upstream; note raised, zero lines
  EMP-003:  Service total disagrees with the line total
  EMP-004:  Still active; refused with ok=false
  EMP-005:  Alias fields only (worked_days / auto_amount)

ADDING NEW FIXTURES:
  Append to DefaultFixtures, or point the server at a JSON file with the
  same shape (see LoadFixtures).

SEE ALSO:
  - client.go: The real fetcher
  - api/handlers.go: ListFixtures
*/
package baseline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/warp/settlement-engine/settlement"
)

// Fixture is one canned payload.
type Fixture struct {
	Employee    string             `json:"employee"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Payload     settlement.Payload `json:"payload"`
}

// FixtureFetcher serves fixtures by employee.
type FixtureFetcher struct {
	mu         sync.RWMutex
	fixtures   map[string]Fixture
	order      []string
	fetchCount map[string]int
}

var _ settlement.Fetcher = (*FixtureFetcher)(nil)

// NewFixtureFetcher indexes fixtures by employee. Later duplicates win.
func NewFixtureFetcher(fixtures []Fixture) *FixtureFetcher {
	f := &FixtureFetcher{
		fixtures:   make(map[string]Fixture, len(fixtures)),
		fetchCount: make(map[string]int),
	}
	for _, fx := range fixtures {
		if _, seen := f.fixtures[fx.Employee]; !seen {
			f.order = append(f.order, fx.Employee)
		}
		f.fixtures[fx.Employee] = fx
	}
	return f
}

// LoadFixtures reads a JSON array of fixtures from path.
func LoadFixtures(path string) ([]Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []Fixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	return fixtures, nil
}

// Fetch returns a copy of the employee's payload. Unknown employees get
// an ok=false payload, as the real service does.
func (f *FixtureFetcher) Fetch(_ context.Context, req settlement.Request) (*settlement.Payload, error) {
	employee := strings.TrimSpace(req.Employee)
	if employee == "" {
		return &settlement.Payload{OK: false, Msg: "Employee is required"}, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCount[employee]++

	fx, ok := f.fixtures[employee]
	if !ok {
		return &settlement.Payload{OK: false, Msg: "Employee not found"}, nil
	}

	p := fx.Payload
	p.Payables = append([]settlement.LineSpec(nil), fx.Payload.Payables...)
	if p.OK && p.AsOfDate == "" {
		p.AsOfDate = req.TransactionDate.String()
	}
	return &p, nil
}

// List returns fixtures in registration order.
func (f *FixtureFetcher) List() []Fixture {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Fixture, 0, len(f.order))
	for _, emp := range f.order {
		out = append(out, f.fixtures[emp])
	}
	return out
}

// FetchCount reports how often employee was fetched.
func (f *FixtureFetcher) FetchCount(employee string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.fetchCount[employee]
}

// =============================================================================
// DEFAULT FIXTURES
// =============================================================================

func num(v any) settlement.Number { return settlement.NumberOf(v) }

// DefaultFixtures returns the built-in demo payloads.
func DefaultFixtures() []Fixture {
	return []Fixture{
		{
			Employee:    "EMP-001",
			Name:        "Worked Day over cap",
			Description: "31 worked days capped at 30, fixed leave encashment",
			Payload: settlement.Payload{
				OK: true,
				Service: &settlement.ServicePayload{
					Years: num(2), Months: num(3), Days: num(10), CustomTotalOfYears: num("2.27"),
				},
				Payables: []settlement.LineSpec{
					{
						Component: "Worked Day", DayCount: num(31), RatePerDay: num(100),
						ReferenceDocumentType: "Employee", ReferenceDocument: "EMP-001",
					},
					{
						Component: "Leave Encashment", Amount: num(1500),
						ReferenceDocumentType: "Leave Type", ReferenceDocument: "Annual Leave",
					},
				},
			},
		},
		{
			Employee:    "EMP-002",
			Name:        "Leave encashment unavailable",
			Description: "Upstream could not compute leave; advisory note, worked days only",
			Payload: settlement.Payload{
				OK:   true,
				Note: "No leave allocation data returned as of the transaction date.",
				Service: &settlement.ServicePayload{
					Years: num(0), Months: num(7), Days: num(14), CustomTotalOfYears: num("0.62"),
				},
				Totals: &settlement.TotalsPayload{
					LeaveEncashmentAmount: num(0), TotalPayable: num(1400),
				},
				Payables: []settlement.LineSpec{
					{
						Component: "Worked Day", DayCount: num(14), RatePerDay: num(100), Amount: num(1400),
						ReferenceDocumentType: "Salary Slip", ReferenceDocument: "SAL-2024-00031",
					},
				},
			},
		},
		{
			Employee:    "EMP-003",
			Name:        "Total mismatch",
			Description: "Service total includes a component the table does not render",
			Payload: settlement.Payload{
				OK: true,
				Service: &settlement.ServicePayload{
					Years: num(5), Months: num(0), Days: num(2), CustomTotalOfYears: num("5.01"),
				},
				Totals: &settlement.TotalsPayload{
					LeaveEncashmentAmount: num(2100), TotalPayable: num(6600),
				},
				Payables: []settlement.LineSpec{
					{Component: "Worked Day", DayCount: num(30), RatePerDay: num(150)},
					{Component: "Notice Pay", Amount: num(2000)},
				},
			},
		},
		{
			Employee:    "EMP-004",
			Name:        "Still active",
			Description: "Refused by the service",
			Payload: settlement.Payload{
				OK:  false,
				Msg: "Employee is still Active. Please set Status to Left and try again.",
			},
		},
		{
			Employee:    "EMP-005",
			Name:        "Alias fields",
			Description: "Lines using worked_days / auto_amount only",
			Payload: settlement.Payload{
				OK: true,
				Service: &settlement.ServicePayload{
					Years: num(1), Months: num(0), Days: num(0), CustomTotalOfYears: num(1),
				},
				Payables: []settlement.LineSpec{
					{Component: "Gratuity", WorkedDays: num(5), AutoAmount: num(500)},
				},
			},
		},
	}
}
