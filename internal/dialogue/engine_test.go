package dialogue

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/availability"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/booking"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/checkpoint"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/lus"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/scheduling"
)

const patientID = "+5511999990000"

var testNow = time.Date(2025, time.June, 5, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, svc lus.Service, dir scheduling.Directory, store Store, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	e, err := New(svc, dir, store, opts...)
	require.NoError(t, err)
	return e
}

func fullIntent() booking.Intent {
	return booking.Intent{
		Specialty:       "cardiology",
		DatePreference:  "2025-06-10",
		ShiftPreference: booking.ShiftMorning,
		ServiceType:     booking.DefaultServiceType,
		PatientName:     "Maria Souza",
	}
}

func awaitingConfirmation() Conversation {
	conv := newConversation(patientID)
	conv.Intent = fullIntent()
	conv.Context = ContextFinalConfirmation
	conv.Offer = &Offer{
		ProfessionalID:   "10",
		ProfessionalName: "Dr. João Silva",
		Specialty:        "Cardiologia",
		Date:             "2025-07-08",
		Slots: []availability.Slot{
			{Date: "2025-07-08", StartTime: "09:00", EndTime: "10:00"},
			{Date: "2025-07-08", StartTime: "10:00", EndTime: "11:00"},
		},
	}
	conv.Selection = &availability.Slot{Date: "2025-07-08", StartTime: "09:00", EndTime: "10:00"}
	return conv
}

func seed(t *testing.T, store Store, conv Conversation) {
	t.Helper()
	data, err := conv.encode()
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), conv.ID, data))
}

func loadConv(t *testing.T, store Store, id string) Conversation {
	t.Helper()
	data, err := store.Load(context.Background(), id)
	require.NoError(t, err)
	conv, err := decodeConversation(id, data)
	require.NoError(t, err)
	return conv
}

func TestNewPanicsOnNilDependencies(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	assert.Panics(t, func() { _, _ = New(nil, newFakeDirectory(), store) })
	assert.Panics(t, func() { _, _ = New(&stubLUS{}, nil, store) })
	assert.Panics(t, func() { _, _ = New(&stubLUS{}, newFakeDirectory(), nil) })
}

func TestSpecialtyOnlyAsksForDate(t *testing.T) {
	svc := &stubLUS{intent: lus.IntentScheduling, extract: extractOnce(booking.Intent{Specialty: "cardiology"})}
	store := checkpoint.NewMemoryStore()
	e := newTestEngine(t, svc, newFakeDirectory(), store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "I want to see a cardiologist")
	require.NoError(t, err)

	assert.Equal(t, StateClarify, reply.State)
	assert.Equal(t, ContextInProgress, reply.Context)
	require.Len(t, reply.Utterances, 1)
	assert.Equal(t, clarifyQuestion(booking.FieldDatePreference), reply.Utterances[0])

	conv := loadConv(t, store, patientID)
	assert.Equal(t, "cardiology", conv.Intent.Specialty)
	assert.Empty(t, conv.Intent.ProfessionalName)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, booking.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, booking.RoleAssistant, conv.Messages[1].Role)
}

func TestDayMentionAsksOnlyForShift(t *testing.T) {
	in := fullIntent()
	in.ShiftPreference = booking.ShiftNone
	in.DatePreference = "day 30"
	svc := &stubLUS{intent: lus.IntentScheduling, extract: extractOnce(in)}
	e := newTestEngine(t, svc, newFakeDirectory(), checkpoint.NewMemoryStore())

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "Cardiology on day 30 for Maria Souza")
	require.NoError(t, err)
	assert.Equal(t, StateClarify, reply.State)
	assert.Equal(t, clarifyQuestion(booking.FieldShiftPreference), reply.Utterances[0])
}

func TestPreferredDateWithoutSlotsOffersNextMonth(t *testing.T) {
	svc := &stubLUS{intent: lus.IntentScheduling, extract: extractOnce(fullIntent())}
	store := checkpoint.NewMemoryStore()
	e := newTestEngine(t, svc, newFakeDirectory(), store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "Cardiology on 2025-06-10 in the morning for Maria Souza")
	require.NoError(t, err)

	assert.Equal(t, StateCheckAvailability, reply.State)
	assert.Equal(t, ContextSlotSelection, reply.Context)
	say := reply.Utterances[0]
	assert.Contains(t, say, "June 10")
	assert.Contains(t, say, "July 8")
	assert.Contains(t, say, "09:00")
	assert.Contains(t, say, "10:00")
	assert.NotContains(t, say, "14:00")

	conv := loadConv(t, store, patientID)
	require.NotNil(t, conv.Offer)
	assert.Equal(t, "2025-07-08", conv.Offer.Date)
	assert.Equal(t, "10", conv.Offer.ProfessionalID)
	assert.Equal(t, "Cardiologia", conv.Offer.Specialty)
	assert.False(t, conv.Offer.MatchedPreferred)
}

func TestBookingNetworkFailureStaysBookable(t *testing.T) {
	dir := newFakeDirectory()
	dir.setSubmitErr(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})
	store := checkpoint.NewMemoryStore()
	seed(t, store, awaitingConfirmation())
	e := newTestEngine(t, &stubLUS{confirm: "confirmed"}, dir, store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "yes")
	require.NoError(t, err)
	assert.Equal(t, StateBook, reply.State)
	assert.Equal(t, ContextFinalConfirmation, reply.Context)
	assert.Equal(t, msgBookingFailed, reply.Utterances[0])

	conv := loadConv(t, store, patientID)
	assert.False(t, conv.Confirmed)
	require.NotNil(t, conv.Selection)
	assert.Nil(t, conv.LastBooking)

	dir.setSubmitErr(nil)
	reply, err = e.HandleInboundMessage(context.Background(), patientID, "yes")
	require.NoError(t, err)
	assert.Equal(t, ContextBookingCompleted, reply.Context)
}

func TestSuccessfulBooking(t *testing.T) {
	dir := newFakeDirectory()
	store := checkpoint.NewMemoryStore()
	seed(t, store, awaitingConfirmation())
	notifier := &recordingNotifier{}
	e := newTestEngine(t, &stubLUS{}, dir, store, WithNotifier(notifier))

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "yes, please book it")
	require.NoError(t, err)

	assert.Equal(t, StateBook, reply.State)
	assert.Equal(t, ContextBookingCompleted, reply.Context)
	assert.Contains(t, reply.Utterances[0], "July 8")
	assert.Contains(t, reply.Utterances[0], "09:00")

	require.Len(t, dir.bookings, 1)
	got := dir.bookings[0]
	assert.Equal(t, "10", got.ProfessionalID)
	assert.Equal(t, "1", got.SpecialtyID)
	assert.Equal(t, "2025-07-08", got.Date)
	assert.Equal(t, "09:00", got.StartTime)
	assert.Equal(t, "10:00", got.EndTime)
	assert.Equal(t, "Maria Souza", got.PatientName)
	assert.Equal(t, "5511999990000", got.Phone)

	conv := loadConv(t, store, patientID)
	require.NotNil(t, conv.LastBooking)
	assert.Equal(t, "bk-1", conv.LastBooking.ID)
	assert.Nil(t, conv.Offer)
	assert.True(t, conv.Intent.IsZero())

	require.Len(t, notifier.replies, 1)
	assert.Equal(t, reply, notifier.replies[0])
}

func TestBookingTakesTimeFromConfirmation(t *testing.T) {
	dir := newFakeDirectory()
	store := checkpoint.NewMemoryStore()
	seed(t, store, awaitingConfirmation())
	e := newTestEngine(t, &stubLUS{confirm: "confirmed"}, dir, store)

	_, err := e.HandleInboundMessage(context.Background(), patientID, "yes, at 10:00")
	require.NoError(t, err)
	require.Len(t, dir.bookings, 1)
	assert.Equal(t, "10:00", dir.bookings[0].StartTime)
}

func TestTakenSlotIsReoffered(t *testing.T) {
	dir := newFakeDirectory()
	dir.setTimes("2025-07-08", scheduling.TimeSlot{Date: "2025-07-08", StartTime: "10:00", EndTime: "11:00"})
	store := checkpoint.NewMemoryStore()
	seed(t, store, awaitingConfirmation())
	e := newTestEngine(t, &stubLUS{confirm: "confirmed"}, dir, store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "yes")
	require.NoError(t, err)

	assert.Equal(t, StateCheckAvailability, reply.State)
	assert.Equal(t, ContextSlotSelection, reply.Context)
	assert.True(t, strings.HasPrefix(reply.Utterances[0], msgSlotTaken))
	assert.Contains(t, reply.Utterances[0], "10:00")
	assert.Empty(t, dir.bookings)
}

func TestSlotGoneOnSubmitIsReoffered(t *testing.T) {
	dir := newFakeDirectory()
	dir.setSubmitErr(&scheduling.APIError{StatusCode: 409, Body: "taken"})
	store := checkpoint.NewMemoryStore()
	seed(t, store, awaitingConfirmation())
	e := newTestEngine(t, &stubLUS{confirm: "confirmed"}, dir, store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "yes")
	require.NoError(t, err)
	assert.Equal(t, ContextSlotSelection, reply.Context)
	assert.True(t, strings.HasPrefix(reply.Utterances[0], msgSlotTaken))
}

func TestRejectionWithTargetAsksTargetedQuestion(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	seed(t, store, awaitingConfirmation())
	e := newTestEngine(t, &stubLUS{confirm: "rejected_generic"}, newFakeDirectory(), store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "no, wrong time")
	require.NoError(t, err)
	assert.Equal(t, ContextCorrection, reply.Context)
	assert.Equal(t, correctionQuestion(booking.FieldSpecificTime), reply.Utterances[0])

	conv := loadConv(t, store, patientID)
	assert.Nil(t, conv.Offer)
	assert.Equal(t, "cardiology", conv.Intent.Specialty)
}

func TestRejectedFieldIsAskedAgain(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	seed(t, store, awaitingConfirmation())
	e := newTestEngine(t, &stubLUS{confirm: "rejected_with_data"}, newFakeDirectory(), store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "no, the date is wrong")
	require.NoError(t, err)
	assert.Equal(t, StateClarify, reply.State)
	assert.Equal(t, ContextInProgress, reply.Context)
	assert.Equal(t, clarifyQuestion(booking.FieldDatePreference), reply.Utterances[0])

	conv := loadConv(t, store, patientID)
	assert.Nil(t, conv.Offer)
	assert.Empty(t, conv.Intent.DatePreference)
	assert.Equal(t, "cardiology", conv.Intent.Specialty)
	assert.Equal(t, booking.ShiftMorning, conv.Intent.ShiftPreference)
}

func TestRejectedTimeAsksForTime(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	seed(t, store, awaitingConfirmation())
	e := newTestEngine(t, &stubLUS{confirm: "rejected_with_data"}, newFakeDirectory(), store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "no, that time doesn't suit me")
	require.NoError(t, err)
	assert.Equal(t, StateClarify, reply.State)
	assert.Equal(t, clarifyQuestion(booking.FieldSpecificTime), reply.Utterances[0])

	conv := loadConv(t, store, patientID)
	assert.Equal(t, booking.ShiftNone, conv.Intent.ShiftPreference)
	assert.Equal(t, "2025-06-10", conv.Intent.DatePreference)
}

func TestRejectionWithNewDateSearchesAgain(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	seed(t, store, awaitingConfirmation())
	svc := &stubLUS{confirm: "rejected_with_data", extract: extractOnce(booking.Intent{DatePreference: "2025-07-08"})}
	e := newTestEngine(t, svc, newFakeDirectory(), store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "no, the date is wrong")
	require.NoError(t, err)
	assert.Equal(t, StateCheckAvailability, reply.State)
	assert.Equal(t, ContextSlotSelection, reply.Context)

	conv := loadConv(t, store, patientID)
	assert.Equal(t, "2025-07-08", conv.Intent.DatePreference)
	require.NotNil(t, conv.Offer)
	assert.Equal(t, "2025-07-08", conv.Offer.Date)
}

func TestUnclearConfirmationReprompts(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	seed(t, store, awaitingConfirmation())
	e := newTestEngine(t, &stubLUS{confirm: "unclear"}, newFakeDirectory(), store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "hmm")
	require.NoError(t, err)
	assert.Equal(t, ContextFinalConfirmation, reply.Context)
	assert.True(t, strings.HasPrefix(reply.Utterances[0], msgConfirmReprompt))
}

func TestContextTakesPriorityOverIntent(t *testing.T) {
	conv := awaitingConfirmation()
	conv.Context = ContextSlotSelection
	conv.Selection = nil
	store := checkpoint.NewMemoryStore()
	seed(t, store, conv)
	svc := &stubLUS{intent: lus.IntentGreeting}
	e := newTestEngine(t, svc, newFakeDirectory(), store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "2")
	require.NoError(t, err)

	assert.Equal(t, StateConfirm, reply.State)
	assert.Equal(t, ContextFinalConfirmation, reply.Context)
	assert.Contains(t, reply.Utterances[0], "10:00")
	assert.Zero(t, svc.calls())

	saved := loadConv(t, store, patientID)
	require.NotNil(t, saved.Selection)
	assert.Equal(t, "10:00", saved.Selection.StartTime)
}

func TestYesPicksTheOnlyOfferedSlot(t *testing.T) {
	conv := awaitingConfirmation()
	conv.Context = ContextSlotSelection
	conv.Offer.Slots = conv.Offer.Slots[:1]
	conv.Selection = nil
	store := checkpoint.NewMemoryStore()
	seed(t, store, conv)
	e := newTestEngine(t, &stubLUS{}, newFakeDirectory(), store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "yes, that works")
	require.NoError(t, err)
	assert.Equal(t, StateConfirm, reply.State)
	assert.Equal(t, ContextFinalConfirmation, reply.Context)
	assert.True(t, strings.HasPrefix(reply.Utterances[0], "Please confirm:"))

	got := loadConv(t, store, patientID)
	require.NotNil(t, got.Selection)
	assert.Equal(t, "09:00", got.Selection.StartTime)
}

func TestYesDoesNotPickAmongSeveralSlots(t *testing.T) {
	conv := awaitingConfirmation()
	conv.Context = ContextSlotSelection
	conv.Selection = nil
	store := checkpoint.NewMemoryStore()
	seed(t, store, conv)
	e := newTestEngine(t, &stubLUS{}, newFakeDirectory(), store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "yes, that works")
	require.NoError(t, err)
	assert.Equal(t, ContextSlotSelection, reply.Context)
	assert.True(t, strings.HasPrefix(reply.Utterances[0], msgPickFromOffer))
}

func TestMoreOptionsPagesThroughSlots(t *testing.T) {
	conv := awaitingConfirmation()
	conv.Context = ContextSlotSelection
	conv.Selection = nil
	conv.Offer.More = []availability.Slot{{Date: "2025-07-08", StartTime: "11:00", EndTime: "12:00"}}
	store := checkpoint.NewMemoryStore()
	seed(t, store, conv)
	e := newTestEngine(t, &stubLUS{}, newFakeDirectory(), store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "do you have other times?")
	require.NoError(t, err)
	assert.Equal(t, ContextSlotSelection, reply.Context)
	assert.Contains(t, reply.Utterances[0], "11:00")

	reply, err = e.HandleInboundMessage(context.Background(), patientID, "any other times?")
	require.NoError(t, err)
	assert.Equal(t, ContextDateSelection, reply.Context)
}

func TestClassifierFailureFallsBack(t *testing.T) {
	e := newTestEngine(t, &stubLUS{intentErr: errLUSDown}, newFakeDirectory(), checkpoint.NewMemoryStore())

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "hello there")
	require.NoError(t, err)
	assert.Equal(t, StateFallback, reply.State)
	assert.Equal(t, msgFallback, reply.Utterances[0])
}

func TestUnknownIntentLabelFallsBack(t *testing.T) {
	e := newTestEngine(t, &stubLUS{intent: "weather"}, newFakeDirectory(), checkpoint.NewMemoryStore())

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "is it raining?")
	require.NoError(t, err)
	assert.Equal(t, StateFallback, reply.State)
}

func TestEmptyMessageFallsBack(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	e := newTestEngine(t, &stubLUS{intent: lus.IntentScheduling}, newFakeDirectory(), store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "   ")
	require.NoError(t, err)
	assert.Equal(t, StateFallback, reply.State)
	assert.Equal(t, msgFallback, reply.Utterances[0])

	conv := loadConv(t, store, patientID)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, booking.RoleAssistant, conv.Messages[0].Role)
}

func TestGreetingAndFarewell(t *testing.T) {
	svc := &stubLUS{intent: lus.IntentGreeting}
	store := checkpoint.NewMemoryStore()
	e := newTestEngine(t, svc, newFakeDirectory(), store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "hi")
	require.NoError(t, err)
	assert.Equal(t, StateGreet, reply.State)
	assert.Equal(t, msgGreeting, reply.Utterances[0])

	svc.intent = lus.IntentFarewell
	reply, err = e.HandleInboundMessage(context.Background(), patientID, "bye")
	require.NoError(t, err)
	assert.Equal(t, StateFarewell, reply.State)
	assert.Equal(t, ContextConversationEnded, reply.Context)
}

func TestUncertainPatientGetsSpecialtyList(t *testing.T) {
	svc := &stubLUS{intent: lus.IntentScheduling}
	store := checkpoint.NewMemoryStore()
	e := newTestEngine(t, svc, newFakeDirectory(), store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "no idea")
	require.NoError(t, err)
	assert.Equal(t, StateToolInvoke, reply.State)
	assert.Equal(t, ContextSpecialtySelection, reply.Context)
	assert.Contains(t, reply.Utterances[0], "1. Cardiologia")
	assert.Contains(t, reply.Utterances[0], "2. Dermatologia")

	reply, err = e.HandleInboundMessage(context.Background(), patientID, "2")
	require.NoError(t, err)
	assert.Equal(t, StateClarify, reply.State)
	assert.Equal(t, clarifyQuestion(booking.FieldDatePreference), reply.Utterances[0])

	conv := loadConv(t, store, patientID)
	assert.Equal(t, "Dermatologia", conv.Intent.Specialty)
	assert.Empty(t, conv.Choices)
}

func TestExtractionFailureUsesKeywords(t *testing.T) {
	svc := &stubLUS{
		intent:  lus.IntentScheduling,
		extract: func([]booking.Message) (booking.Intent, error) { return booking.Intent{}, errLUSDown },
	}
	store := checkpoint.NewMemoryStore()
	e := newTestEngine(t, svc, newFakeDirectory(), store)

	_, err := e.HandleInboundMessage(context.Background(), patientID, "I need a cardiologist tomorrow morning")
	require.NoError(t, err)

	conv := loadConv(t, store, patientID)
	assert.Equal(t, "cardiologist", conv.Intent.Specialty)
	assert.Equal(t, "tomorrow", conv.Intent.DatePreference)
	assert.Equal(t, booking.ShiftMorning, conv.Intent.ShiftPreference)
}

func TestDirectoryOutageAsksToRetry(t *testing.T) {
	dir := newFakeDirectory()
	dir.datesErr = errors.New("connection reset")
	svc := &stubLUS{intent: lus.IntentScheduling, extract: extractOnce(fullIntent())}
	e := newTestEngine(t, svc, dir, checkpoint.NewMemoryStore())

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "cardiology on 2025-06-10 morning")
	require.NoError(t, err)
	assert.Equal(t, ContextAvailabilityRetry, reply.Context)
	assert.Equal(t, msgDirectoryDown, reply.Utterances[0])
}

func TestUnknownProfessionalAsksForCorrection(t *testing.T) {
	in := fullIntent()
	in.Specialty = ""
	in.ProfessionalName = "Dr. Gregory House"
	svc := &stubLUS{intent: lus.IntentScheduling, extract: extractOnce(in)}
	store := checkpoint.NewMemoryStore()
	e := newTestEngine(t, svc, newFakeDirectory(), store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "with Dr. Gregory House")
	require.NoError(t, err)
	assert.Equal(t, ContextCorrection, reply.Context)
	assert.Contains(t, reply.Utterances[0], "Gregory House")
	assert.Empty(t, loadConv(t, store, patientID).Intent.ProfessionalName)
}

func TestLoopGuardRevertsToSnapshot(t *testing.T) {
	svc := &stubLUS{intent: lus.IntentScheduling, extract: extractOnce(booking.Intent{Specialty: "cardiology"})}
	store := checkpoint.NewMemoryStore()
	e := newTestEngine(t, svc, newFakeDirectory(), store, WithMaxTransitions(2))

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "I want to see a cardiologist")
	require.NoError(t, err)
	assert.Equal(t, StateFallback, reply.State)
	assert.Equal(t, msgFallback, reply.Utterances[0])

	conv := loadConv(t, store, patientID)
	assert.Empty(t, conv.Intent.Specialty)
	assert.Equal(t, ContextNone, conv.Context)
}

func TestSaveFailureStillReturnsReply(t *testing.T) {
	e := newTestEngine(t, &stubLUS{intent: lus.IntentGreeting}, newFakeDirectory(), failingStore{err: errors.New("disk full")})

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, msgGreeting, reply.Utterances[0])
}

func TestLoadFailureKeepsCheckpoint(t *testing.T) {
	dir := newFakeDirectory()
	store := &flakyStore{Store: checkpoint.NewMemoryStore(), loadFailures: 1, err: errors.New("redis: i/o timeout")}
	seed(t, store.Store, awaitingConfirmation())
	e := newTestEngine(t, &stubLUS{}, dir, store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "i/o timeout")
	assert.Equal(t, StateFallback, reply.State)
	assert.Equal(t, msgStoreDown, reply.Utterances[0])
	assert.Zero(t, store.saves)
	assert.Empty(t, dir.bookings)

	conv := loadConv(t, store, patientID)
	require.NotNil(t, conv.Offer)
	require.NotNil(t, conv.Selection)
	assert.Equal(t, ContextFinalConfirmation, conv.Context)
	assert.Equal(t, fullIntent().Specialty, conv.Intent.Specialty)
	assert.Empty(t, conv.Messages)

	reply, err = e.HandleInboundMessage(context.Background(), patientID, "yes")
	require.NoError(t, err)
	assert.Equal(t, StateBook, reply.State)
	assert.Len(t, dir.bookings, 1)
}

func TestNotifierFailureDoesNotFailTurn(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("webhook down")}
	e := newTestEngine(t, &stubLUS{intent: lus.IntentGreeting}, newFakeDirectory(), checkpoint.NewMemoryStore(), WithNotifier(notifier))

	_, err := e.HandleInboundMessage(context.Background(), patientID, "hello")
	require.NoError(t, err)
	assert.Len(t, notifier.replies, 1)
}

func TestUnreadableCheckpointStartsFresh(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), patientID, []byte("{not json")))
	e := newTestEngine(t, &stubLUS{intent: lus.IntentGreeting}, newFakeDirectory(), store)

	reply, err := e.HandleInboundMessage(context.Background(), patientID, "hello")
	require.NoError(t, err)
	assert.Equal(t, StateGreet, reply.State)
}

func TestConcurrentTurnsAreSerialized(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	e := newTestEngine(t, &stubLUS{intent: lus.IntentGreeting}, newFakeDirectory(), store)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.HandleInboundMessage(context.Background(), patientID, "hi")
		}()
	}
	wg.Wait()

	conv := loadConv(t, store, patientID)
	assert.Len(t, conv.Messages, 20)
	assert.Zero(t, e.locks.size())
}

func TestPhoneFromID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"+5511999990000", "5511999990000"},
		{"whatsapp:+5511999990000", "5511999990000"},
		{"+1 (555) 010-2030", "15550102030"},
		{"conv-123", ""},
		{"1234", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, phoneFromID(tt.id), tt.id)
	}
}

func TestPreferTime(t *testing.T) {
	slots := []availability.Slot{{StartTime: "08:00"}, {StartTime: "09:00"}, {StartTime: "10:00"}, {StartTime: "11:00"}}
	got := preferTime(slots, "11:00")
	assert.Equal(t, "11:00", got[0].StartTime)
	assert.Equal(t, "08:00", got[1].StartTime)
	assert.Equal(t, "10:00", got[3].StartTime)
	assert.Equal(t, "08:00", slots[0].StartTime)
	assert.Equal(t, slots, preferTime(slots, ""))
}
