package billing

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bits-grahate/hospital-management-system/internal/platform/events"
	"github.com/bits-grahate/hospital-management-system/pkg/apperror"
	"github.com/bits-grahate/hospital-management-system/pkg/pagination"
)

type mockRepo struct {
	mu    sync.Mutex
	bills []*Bill
}

func (m *mockRepo) Create(ctx context.Context, b *Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = time.Now()
	cp := *b
	m.bills = append(m.bills, &cp)
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bills {
		if b.ID == id {
			cp := *b
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("bill %s not found", id)
}

func (m *mockRepo) GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.bills) - 1; i >= 0; i-- {
		if m.bills[i].AppointmentID == appointmentID {
			cp := *m.bills[i]
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("no bill for appointment %s", appointmentID)
}

func (m *mockRepo) List(ctx context.Context, p pagination.Params) ([]Bill, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Bill
	for _, b := range m.bills {
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, p pagination.Params) ([]Bill, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Bill
	for _, b := range m.bills {
		if b.PatientID == patientID {
			out = append(out, *b)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) Update(ctx context.Context, b *Bill, expected Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.bills {
		if existing.ID == b.ID {
			if existing.Status != expected {
				return apperror.InvalidState("bill %s is %s, expected %s", b.ID, existing.Status, expected)
			}
			cp := *b
			m.bills[i] = &cp
			return nil
		}
	}
	return apperror.NotFound("bill %s not found", b.ID)
}

func (m *mockRepo) byAppointment(appointmentID uuid.UUID) []Bill {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Bill
	for _, b := range m.bills {
		if b.AppointmentID == appointmentID {
			out = append(out, *b)
		}
	}
	return out
}

type mockProcessed struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *mockProcessed) MarkProcessed(ctx context.Context, appointmentID uuid.UUID, eventType string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := appointmentID.String() + "|" + eventType
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

type fakeSlotSource struct {
	slotStart time.Time
	err       error
}

func (f *fakeSlotSource) GetSlotStart(ctx context.Context, appointmentID uuid.UUID) (time.Time, error) {
	if f.err != nil {
		return time.Time{}, f.err
	}
	return f.slotStart, nil
}

type fakePharmacy struct {
	fee decimal.Decimal
	err error
}

func (f *fakePharmacy) MedicationFee(ctx context.Context, appointmentID uuid.UUID) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.fee, nil
}

var testNow = time.Date(2030, 5, 10, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	repo     *mockRepo
	slots    *fakeSlotSource
	pharmacy *fakePharmacy
}

func newFixture() *fixture {
	repo := &mockRepo{}
	processed := &mockProcessed{seen: make(map[string]bool)}
	slots := &fakeSlotSource{slotStart: testNow.Add(4 * time.Hour)}
	pharmacy := &fakePharmacy{fee: decimal.RequireFromString("200.00")}
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)

	passthrough := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(ctx)
	}

	svc := NewService(repo, processed, slots, pharmacy, passthrough, logger).
		WithClock(func() time.Time { return testNow })

	return &fixture{svc: svc, repo: repo, slots: slots, pharmacy: pharmacy}
}

func event(t string) *IngestEvent {
	return &IngestEvent{
		AppointmentID: uuid.New(),
		PatientID:     uuid.New(),
		EventType:     t,
	}
}

func assertAmount(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("amount = %s, want %s", got, want)
	}
}

func TestProcessEvent_CompletedCreatesOpenBill(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCompleted)

	if err := f.svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	bill, err := f.repo.GetByAppointmentID(context.Background(), ev.AppointmentID)
	if err != nil {
		t.Fatalf("GetByAppointmentID: %v", err)
	}
	if bill.Status != StatusOpen {
		t.Fatalf("status = %s, want OPEN", bill.Status)
	}
	assertAmount(t, bill.ConsultationFee, "500.00")
	assertAmount(t, bill.MedicationFee, "200.00")
	assertAmount(t, bill.TaxAmount, "35.00")
	assertAmount(t, bill.TotalAmount, "735.00")
}

func TestProcessEvent_CompletedPharmacyFailureUsesDefaultFee(t *testing.T) {
	f := newFixture()
	f.pharmacy.err = apperror.DependencyUnavailable("pharmacy down")
	ev := event(events.TypeCompleted)

	if err := f.svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	bill, _ := f.repo.GetByAppointmentID(context.Background(), ev.AppointmentID)
	assertAmount(t, bill.MedicationFee, "200.00")
	assertAmount(t, bill.TotalAmount, "735.00")
}

func TestProcessEvent_CompletedDuplicateBillConflict(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCompleted)
	seedBill(t, f, ev, StatusOpen, "735.00")

	err := f.svc.ProcessEvent(context.Background(), ev)
	if apperror.CodeOf(err) != apperror.CodeConflict {
		t.Fatalf("error code = %v, want CONFLICT", apperror.CodeOf(err))
	}
	if got := len(f.repo.byAppointment(ev.AppointmentID)); got != 1 {
		t.Fatalf("bill count = %d, want 1", got)
	}
}

func TestProcessEvent_ReplayIsRejectedOnce(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCompleted)

	if err := f.svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("first ProcessEvent: %v", err)
	}
	err := f.svc.ProcessEvent(context.Background(), ev)
	if apperror.CodeOf(err) != apperror.CodeConflict {
		t.Fatalf("replay error code = %v, want CONFLICT", apperror.CodeOf(err))
	}
	if got := len(f.repo.byAppointment(ev.AppointmentID)); got != 1 {
		t.Fatalf("bill count after replay = %d, want 1", got)
	}
}

func TestProcessEvent_ReplayedNoShowDoesNotDoubleBill(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeNoShow)

	if err := f.svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("first ProcessEvent: %v", err)
	}
	if err := f.svc.ProcessEvent(context.Background(), ev); apperror.CodeOf(err) != apperror.CodeConflict {
		t.Fatalf("replay error code = %v, want CONFLICT", apperror.CodeOf(err))
	}
	if got := len(f.repo.byAppointment(ev.AppointmentID)); got != 1 {
		t.Fatalf("bill count = %d, want 1", got)
	}
}

func TestProcessEvent_ValidationErrors(t *testing.T) {
	f := newFixture()

	cases := []struct {
		name string
		ev   *IngestEvent
	}{
		{"missing appointment id", &IngestEvent{PatientID: uuid.New(), EventType: events.TypeCompleted}},
		{"missing patient id", &IngestEvent{AppointmentID: uuid.New(), EventType: events.TypeCompleted}},
		{"booked is not billable", event(events.TypeBooked)},
		{"unknown type", event("PAYMENT_DUE")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.svc.ProcessEvent(context.Background(), tc.ev)
			if apperror.CodeOf(err) != apperror.CodeValidation {
				t.Fatalf("error code = %v, want VALIDATION_ERROR", apperror.CodeOf(err))
			}
		})
	}
}

func TestProcessEvent_EarlyCancellationVoidsOpenBill(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCancelled)
	billID := seedBill(t, f, ev, StatusOpen, "735.00")
	f.slots.slotStart = testNow.Add(5 * time.Hour)

	if err := f.svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	bill, _ := f.repo.GetByID(context.Background(), billID)
	if bill.Status != StatusVoid {
		t.Fatalf("status = %s, want VOID", bill.Status)
	}
}

func TestProcessEvent_EarlyCancellationRefundsPaidBillInFull(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCancelled)
	billID := seedBill(t, f, ev, StatusPaid, "575.00")
	f.slots.slotStart = testNow.Add(5 * time.Hour)

	if err := f.svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	bill, _ := f.repo.GetByID(context.Background(), billID)
	if bill.Status != StatusRefunded {
		t.Fatalf("status = %s, want REFUNDED", bill.Status)
	}
	if bill.RefundAmount == nil {
		t.Fatal("refund amount not recorded")
	}
	assertAmount(t, *bill.RefundAmount, "575.00")
}

func TestProcessEvent_EarlyCancellationWithoutBillIsNoOp(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCancelled)
	f.slots.slotStart = testNow.Add(5 * time.Hour)

	if err := f.svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if got := len(f.repo.byAppointment(ev.AppointmentID)); got != 0 {
		t.Fatalf("bill count = %d, want 0", got)
	}
}

func TestProcessEvent_LateCancellationReducesOpenBillToFee(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCancelled)
	billID := seedBill(t, f, ev, StatusOpen, "735.00")
	f.slots.slotStart = testNow.Add(90 * time.Minute)

	if err := f.svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	bill, _ := f.repo.GetByID(context.Background(), billID)
	if bill.Status != StatusOpen {
		t.Fatalf("status = %s, want OPEN", bill.Status)
	}
	assertAmount(t, bill.ConsultationFee, "250.00")
	assertAmount(t, bill.MedicationFee, "0")
	assertAmount(t, bill.TaxAmount, "0")
	assertAmount(t, bill.TotalAmount, "250.00")
}

func TestProcessEvent_LateCancellationPartiallyRefundsPaidBill(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCancelled)
	billID := seedBill(t, f, ev, StatusPaid, "735.00")
	f.slots.slotStart = testNow.Add(90 * time.Minute)

	if err := f.svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	bill, _ := f.repo.GetByID(context.Background(), billID)
	if bill.Status != StatusPaid {
		t.Fatalf("status = %s, want PAID", bill.Status)
	}
	if bill.RefundAmount == nil {
		t.Fatal("refund amount not recorded")
	}
	assertAmount(t, *bill.RefundAmount, "485.00")
}

func TestProcessEvent_LateCancellationPaidBelowFeeRaisesNewBill(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCancelled)
	billID := seedBill(t, f, ev, StatusPaid, "200.00")
	f.slots.slotStart = testNow.Add(90 * time.Minute)

	if err := f.svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	paid, _ := f.repo.GetByID(context.Background(), billID)
	if paid.Status != StatusPaid || paid.RefundAmount != nil {
		t.Fatalf("paid bill was modified: status=%s refund=%v", paid.Status, paid.RefundAmount)
	}

	bills := f.repo.byAppointment(ev.AppointmentID)
	if len(bills) != 2 {
		t.Fatalf("bill count = %d, want 2", len(bills))
	}
	fee := bills[1]
	if fee.Status != StatusOpen {
		t.Fatalf("fee bill status = %s, want OPEN", fee.Status)
	}
	assertAmount(t, fee.TotalAmount, "250.00")
}

func TestProcessEvent_LateCancellationWithoutBillCreatesFeeBill(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCancelled)
	f.slots.slotStart = testNow.Add(30 * time.Minute)

	if err := f.svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	bill, err := f.repo.GetByAppointmentID(context.Background(), ev.AppointmentID)
	if err != nil {
		t.Fatalf("GetByAppointmentID: %v", err)
	}
	assertAmount(t, bill.TotalAmount, "250.00")
	assertAmount(t, bill.TaxAmount, "0")
}

func TestProcessEvent_SlotLookupFailureChargesLateFee(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCancelled)
	f.slots.err = apperror.DependencyUnavailable("appointment service down")

	if err := f.svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	bill, err := f.repo.GetByAppointmentID(context.Background(), ev.AppointmentID)
	if err != nil {
		t.Fatalf("GetByAppointmentID: %v", err)
	}
	assertAmount(t, bill.TotalAmount, "250.00")
}

func TestProcessEvent_NoShowAlwaysCreatesNewBill(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeNoShow)
	seedBill(t, f, ev, StatusPaid, "735.00")

	if err := f.svc.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	bills := f.repo.byAppointment(ev.AppointmentID)
	if len(bills) != 2 {
		t.Fatalf("bill count = %d, want 2", len(bills))
	}
	noShow := bills[1]
	if noShow.Status != StatusOpen {
		t.Fatalf("status = %s, want OPEN", noShow.Status)
	}
	assertAmount(t, noShow.TotalAmount, "500.00")
	assertAmount(t, noShow.TaxAmount, "0")
}

func TestVoidBill(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCompleted)
	billID := seedBill(t, f, ev, StatusOpen, "735.00")

	bill, err := f.svc.VoidBill(context.Background(), billID)
	if err != nil {
		t.Fatalf("VoidBill: %v", err)
	}
	if bill.Status != StatusVoid {
		t.Fatalf("status = %s, want VOID", bill.Status)
	}

	if _, err := f.svc.VoidBill(context.Background(), billID); apperror.CodeOf(err) != apperror.CodeInvalidState {
		t.Fatalf("second void error code = %v, want INVALID_STATE", apperror.CodeOf(err))
	}
}

func TestMarkPaid(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCompleted)
	billID := seedBill(t, f, ev, StatusOpen, "735.00")

	bill, err := f.svc.MarkPaid(context.Background(), billID)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if bill.Status != StatusPaid {
		t.Fatalf("status = %s, want PAID", bill.Status)
	}

	if _, err := f.svc.MarkPaid(context.Background(), billID); apperror.CodeOf(err) != apperror.CodeInvalidState {
		t.Fatalf("second paid error code = %v, want INVALID_STATE", apperror.CodeOf(err))
	}
}

func TestProcessRefund_FullRefundMovesToRefunded(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCompleted)
	billID := seedBill(t, f, ev, StatusPaid, "575.00")

	bill, err := f.svc.ProcessRefund(context.Background(), billID, &RefundRequest{
		Amount: decimal.RequireFromString("575.00"),
		Reason: "duplicate payment",
	})
	if err != nil {
		t.Fatalf("ProcessRefund: %v", err)
	}
	if bill.Status != StatusRefunded {
		t.Fatalf("status = %s, want REFUNDED", bill.Status)
	}
}

func TestProcessRefund_PartialRefundStaysPaid(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCompleted)
	billID := seedBill(t, f, ev, StatusPaid, "575.00")

	bill, err := f.svc.ProcessRefund(context.Background(), billID, &RefundRequest{
		Amount: decimal.RequireFromString("100.00"),
		Reason: "goodwill",
	})
	if err != nil {
		t.Fatalf("ProcessRefund: %v", err)
	}
	if bill.Status != StatusPaid {
		t.Fatalf("status = %s, want PAID", bill.Status)
	}
	assertAmount(t, *bill.RefundAmount, "100.00")
}

func TestProcessRefund_InvalidAmountsLeaveBillUnmodified(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCompleted)
	billID := seedBill(t, f, ev, StatusPaid, "575.00")

	for _, amount := range []string{"0", "-10.00", "575.01"} {
		_, err := f.svc.ProcessRefund(context.Background(), billID, &RefundRequest{
			Amount: decimal.RequireFromString(amount),
			Reason: "test",
		})
		if apperror.CodeOf(err) != apperror.CodeValidation {
			t.Fatalf("amount %s: error code = %v, want VALIDATION_ERROR", amount, apperror.CodeOf(err))
		}
	}

	bill, _ := f.repo.GetByID(context.Background(), billID)
	if bill.Status != StatusPaid || bill.RefundAmount != nil {
		t.Fatalf("bill modified by rejected refund: status=%s refund=%v", bill.Status, bill.RefundAmount)
	}
}

func TestProcessRefund_OpenBillRejected(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCompleted)
	billID := seedBill(t, f, ev, StatusOpen, "735.00")

	_, err := f.svc.ProcessRefund(context.Background(), billID, &RefundRequest{
		Amount: decimal.RequireFromString("100.00"),
		Reason: "test",
	})
	if apperror.CodeOf(err) != apperror.CodeInvalidState {
		t.Fatalf("error code = %v, want INVALID_STATE", apperror.CodeOf(err))
	}
}

func TestListByPatient(t *testing.T) {
	f := newFixture()
	ev := event(events.TypeCompleted)
	seedBill(t, f, ev, StatusOpen, "735.00")
	seedBill(t, f, event(events.TypeCompleted), StatusOpen, "500.00")

	bills, total, err := f.svc.ListByPatient(context.Background(), ev.PatientID, pagination.Params{Limit: 20})
	if err != nil {
		t.Fatalf("ListByPatient: %v", err)
	}
	if total != 1 || len(bills) != 1 {
		t.Fatalf("got %d bills (total %d), want 1", len(bills), total)
	}
}

// gatedRepo holds every GetByID caller at a barrier until released, forcing
// concurrent transitions to read the same bill state before either writes.
type gatedRepo struct {
	*mockRepo
	reads   chan struct{}
	release chan struct{}
}

func (g *gatedRepo) GetByID(ctx context.Context, id uuid.UUID) (*Bill, error) {
	b, err := g.mockRepo.GetByID(ctx, id)
	g.reads <- struct{}{}
	<-g.release
	return b, err
}

func TestConcurrentTransitions_OnlyOneApplies(t *testing.T) {
	repo := &gatedRepo{
		mockRepo: &mockRepo{},
		reads:    make(chan struct{}, 2),
		release:  make(chan struct{}),
	}
	processed := &mockProcessed{seen: make(map[string]bool)}
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	passthrough := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(ctx)
	}
	svc := NewService(repo, processed, &fakeSlotSource{}, &fakePharmacy{}, passthrough, logger).
		WithClock(func() time.Time { return testNow })

	bill := &Bill{
		PatientID:       uuid.New(),
		AppointmentID:   uuid.New(),
		ConsultationFee: decimal.RequireFromString("500.00"),
		TotalAmount:     decimal.RequireFromString("500.00"),
		Status:          StatusOpen,
	}
	if err := repo.mockRepo.Create(context.Background(), bill); err != nil {
		t.Fatalf("seed bill: %v", err)
	}

	// Both requests observe the bill as OPEN before either commits.
	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = svc.VoidBill(context.Background(), bill.ID)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = svc.MarkPaid(context.Background(), bill.ID)
	}()
	<-repo.reads
	<-repo.reads
	close(repo.release)
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		if apperror.CodeOf(err) != apperror.CodeInvalidState {
			t.Errorf("unexpected failure mode: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one transition to apply, got %d", successes)
	}

	final, err := repo.mockRepo.GetByID(context.Background(), bill.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != StatusVoid && final.Status != StatusPaid {
		t.Fatalf("final status = %s, want VOID or PAID", final.Status)
	}
}

// seedBill inserts a bill directly through the repository, bypassing the
// event pipeline.
func seedBill(t *testing.T, f *fixture, ev *IngestEvent, status Status, total string) uuid.UUID {
	t.Helper()
	bill := &Bill{
		PatientID:       ev.PatientID,
		AppointmentID:   ev.AppointmentID,
		ConsultationFee: decimal.RequireFromString("500.00"),
		MedicationFee:   decimal.RequireFromString("200.00"),
		TaxAmount:       decimal.RequireFromString("35.00"),
		TotalAmount:     decimal.RequireFromString(total),
		Status:          status,
	}
	if err := f.repo.Create(context.Background(), bill); err != nil {
		t.Fatalf("seed bill: %v", err)
	}
	return bill.ID
}
