package saga

import (
	"context"
	"encoding/xml"
	"strings"
	"sync"
	"time"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/error_handling"
	eventmodels "ess-loan-gateway/internal/pkg/models"
	"ess-loan-gateway/internal/pkg/protocol"
	"ess-loan-gateway/internal/pkg/store/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memApps keeps applications as BSON documents so dotted-path updates behave like the Mongo repository.
type memApps struct {
	mu   sync.Mutex
	docs []bson.M
}

func toDoc(app *models.LoanApplication) bson.M {
	raw, err := bson.Marshal(app)
	if err != nil {
		panic(err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		panic(err)
	}
	return doc
}

func fromDoc(doc bson.M) *models.LoanApplication {
	raw, err := bson.Marshal(doc)
	if err != nil {
		panic(err)
	}
	var app models.LoanApplication
	if err := bson.Unmarshal(raw, &app); err != nil {
		panic(err)
	}
	return &app
}

func child(doc bson.M, key string, create bool) (bson.M, bool) {
	switch v := doc[key].(type) {
	case bson.M:
		return v, true
	case bson.D:
		m := v.Map()
		doc[key] = m
		return m, true
	}
	if !create {
		return nil, false
	}
	m := bson.M{}
	doc[key] = m
	return m, true
}

func setPath(doc bson.M, path string, value interface{}) {
	parts := strings.Split(path, ".")
	for _, p := range parts[:len(parts)-1] {
		doc, _ = child(doc, p, true)
	}
	doc[parts[len(parts)-1]] = value
}

func hasPath(doc bson.M, path string) bool {
	parts := strings.Split(path, ".")
	for _, p := range parts[:len(parts)-1] {
		var ok bool
		if doc, ok = child(doc, p, false); !ok {
			return false
		}
	}
	_, ok := doc[parts[len(parts)-1]]
	return ok
}

// put seeds a record as stored.
func (m *memApps) put(app *models.LoanApplication) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if app.ID.IsZero() {
		app.ID = primitive.NewObjectID()
	}
	m.docs = append(m.docs, toDoc(app))
}

func (m *memApps) get(applicationID string) *models.LoanApplication {
	app, err := m.FindByApplicationID(context.Background(), applicationID)
	if err != nil {
		panic(err)
	}
	return app
}

func (m *memApps) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func (m *memApps) locate(match func(*models.LoanApplication) bool) (bson.M, *models.LoanApplication) {
	for _, doc := range m.docs {
		if app := fromDoc(doc); match(app) {
			return doc, app
		}
	}
	return nil, nil
}

func (m *memApps) byID(applicationID string) (bson.M, *models.LoanApplication) {
	return m.locate(func(a *models.LoanApplication) bool { return a.ApplicationID == applicationID })
}

func (m *memApps) findOne(id string, match func(*models.LoanApplication) bool) (*models.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, app := m.locate(match); app != nil {
		return app, nil
	}
	return nil, &error_handling.NotFoundError{Resource: "application", ID: id}
}

func (m *memApps) FindByApplicationID(ctx context.Context, id string) (*models.LoanApplication, error) {
	return m.findOne(id, func(a *models.LoanApplication) bool { return a.ApplicationID == id })
}

func (m *memApps) FindByLoanAlias(ctx context.Context, alias string) (*models.LoanApplication, error) {
	return m.findOne(alias, func(a *models.LoanApplication) bool { return a.ExternalRefs.ESSLoanAlias == alias })
}

func (m *memApps) FindByLedgerLoanID(ctx context.Context, loanID string) (*models.LoanApplication, error) {
	return m.findOne(loanID, func(a *models.LoanApplication) bool { return a.LedgerRefs.LoanID == loanID })
}

func (m *memApps) Admit(ctx context.Context, app *models.LoanApplication) (*models.LoanApplication, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, existing := m.byID(app.ApplicationID); existing != nil {
		if existing.Status.IsTerminal() {
			return nil, false, &error_handling.StateError{ApplicationID: app.ApplicationID, Status: string(existing.Status), Action: "re-submit"}
		}
		return existing, false, nil
	}
	now := time.Now().UTC()
	app.ID = primitive.NewObjectID()
	app.Status = consts.StatusInitialOffer
	app.CreatedAt, app.UpdatedAt = now, now
	m.docs = append(m.docs, toDoc(app))
	return fromDoc(m.docs[len(m.docs)-1]), true, nil
}

func (m *memApps) MergeOfferTerms(ctx context.Context, id string, terms models.LoanTerms) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, app := m.byID(id)
	if app == nil || app.Status != consts.StatusInitialOffer {
		return false, nil
	}
	doc["terms"] = terms
	return true, nil
}

func (m *memApps) Transition(ctx context.Context, id string, from []consts.ApplicationStatus, to consts.ApplicationStatus, set bson.M) (*models.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, app := m.byID(id)
	if app == nil {
		return nil, &error_handling.NotFoundError{Resource: "application", ID: id}
	}
	if !containsStatus(from, app.Status) {
		return nil, &error_handling.StateError{ApplicationID: id, Status: string(app.Status), Action: "move to " + string(to) + " from"}
	}
	now := time.Now().UTC()
	doc["status"] = to
	if field := models.StageTimestampField(to); field != "" {
		setPath(doc, field, now)
	}
	for k, v := range set {
		setPath(doc, k, v)
	}
	return fromDoc(doc), nil
}

func (m *memApps) SetOnce(ctx context.Context, id, field string, value interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, app := m.byID(id)
	if app == nil || hasPath(doc, field) {
		return false, nil
	}
	setPath(doc, field, value)
	return true, nil
}

func (m *memApps) SetFields(ctx context.Context, id string, set bson.M) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, _ := m.byID(id)
	if doc == nil {
		return nil
	}
	for k, v := range set {
		setPath(doc, k, v)
	}
	return nil
}

func (m *memApps) AppendError(ctx context.Context, id, stage string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, doc := range m.docs {
		app := fromDoc(doc)
		if app.ApplicationID != id {
			continue
		}
		app.ErrorLog = append(app.ErrorLog, models.ErrorEntry{Stage: stage, Error: cause.Error(), At: time.Now().UTC()})
		m.docs[i] = toDoc(app)
	}
	return nil
}

func (m *memApps) ListByStatus(ctx context.Context, statuses []consts.ApplicationStatus, after primitive.ObjectID, limit int64) ([]models.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LoanApplication
	for _, doc := range m.docs {
		app := fromDoc(doc)
		if !containsStatus(statuses, app.Status) {
			continue
		}
		if !after.IsZero() && app.ID.Hex() <= after.Hex() {
			continue
		}
		out = append(out, *app)
		if int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

type memTasks struct {
	mu    sync.Mutex
	tasks []*models.Task
}

func (q *memTasks) Enqueue(ctx context.Context, kind consts.TaskKind, applicationID, dedupeKey string, payload models.TaskPayload, maxAttempts int) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.tasks {
		if t.DedupeKey == dedupeKey {
			return false, nil
		}
	}
	q.tasks = append(q.tasks, &models.Task{
		TaskID:        dedupeKey,
		Kind:          kind,
		ApplicationID: applicationID,
		DedupeKey:     dedupeKey,
		Payload:       payload,
		Status:        consts.TaskPending,
		MaxAttempts:   maxAttempts,
	})
	return true, nil
}

func (q *memTasks) Rearm(ctx context.Context, dedupeKey string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.tasks {
		if t.DedupeKey == dedupeKey && (t.Status == consts.TaskDone || t.Status == consts.TaskDead) {
			t.Status = consts.TaskPending
			return true, nil
		}
	}
	return false, nil
}

func (q *memTasks) ofKind(kind consts.TaskKind) []models.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []models.Task
	for _, t := range q.tasks {
		if t.Kind == kind {
			out = append(out, *t)
		}
	}
	return out
}

func (q *memTasks) callbacks(messageType string) []models.Task {
	var out []models.Task
	for _, t := range q.ofKind(consts.TaskDeliverCallback) {
		if t.Payload.MessageType == messageType {
			out = append(out, t)
		}
	}
	return out
}

// markDone simulates the dispatcher finishing every queued task.
func (q *memTasks) markDone() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.tasks {
		t.Status = consts.TaskDone
	}
}

type recordingEvents struct {
	mu     sync.Mutex
	events []eventmodels.StatusChangedEvent
}

func (r *recordingEvents) PublishStatusChanged(ctx context.Context, event eventmodels.StatusChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

type stubProducts map[string]models.LoanProduct

func (p stubProducts) FindByCode(ctx context.Context, code string) (*models.LoanProduct, error) {
	product, ok := p[code]
	if !ok {
		return nil, &error_handling.NotFoundError{Resource: "product", ID: code}
	}
	return &product, nil
}

// decodeCallback unmarshals the details a callback task carries.
func decodeCallback(task models.Task, out protocol.Details) error {
	return xml.Unmarshal([]byte(task.Payload.DetailsXML), out)
}
