// Package wizard drives a candidate through the six onboarding steps,
// persisting a draft after each one and resuming after the Aadhaar e-Sign redirect.
package wizard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/pkg/client"
	"github.com/crewhire/onboarding-backend/pkg/validator"
	"github.com/google/uuid"
)

// DraftStore persists the form. GetDraft fails with client.ErrNotFound when no draft exists.
type DraftStore interface {
	GetDraft(ctx context.Context, phone string) (*models.Application, error)
	SaveDraft(ctx context.Context, req models.SaveDraftRequest) (*models.Application, error)
	Submit(ctx context.Context, id uuid.UUID) (*models.Application, error)
}

// Uploader stores staged documents against an application
type Uploader interface {
	Upload(ctx context.Context, id uuid.UUID, files []client.File) ([]models.Document, error)
}

// Verifier is the identity verification side of the API
type Verifier interface {
	SendOTP(ctx context.Context, phone string) (*models.SendOTPResponse, error)
	VerifyOTP(ctx context.Context, phone, otp string) (*models.VerifyOTPResponse, error)
	VerifyPAN(ctx context.Context, req models.VerifyPANRequest) (*models.VerifyPANResponse, error)
	InitiateAadhaarEsign(ctx context.Context, req models.InitiateAadhaarRequest) (*models.InitiateAadhaarResponse, error)
	CheckAadhaarStatus(ctx context.Context, transactionID string) (*models.AadhaarStatusResponse, error)
	Resume(ctx context.Context, resumeToken, clientID string) (*models.ResumeResponse, error)
}

var (
	_ DraftStore = (*client.Client)(nil)
	_ Uploader   = (*client.Client)(nil)
	_ Verifier   = (*client.Client)(nil)
)

// Deps are the controller's collaborators
type Deps struct {
	Drafts   DraftStore
	Uploads  Uploader
	Verifier Verifier
	Suspend  SuspendStore
	Now      func() time.Time // anchors age rules; defaults to time.Now
}

// Controller is the wizard state machine. It is not safe for concurrent use:
// one controller serves one candidate session.
type Controller struct {
	drafts   DraftStore
	uploads  Uploader
	verifier Verifier
	suspend  SuspendStore
	now      func() time.Time

	started   bool
	submitted bool
	step      int
	phone     string
	appID     *uuid.UUID
	txID      string
	data      models.ApplicationData
	flags     models.VerificationFlags
	staged    []client.File
}

// New creates a controller
func New(deps Deps) *Controller {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		drafts:   deps.Drafts,
		uploads:  deps.Uploads,
		verifier: deps.Verifier,
		suspend:  deps.Suspend,
		now:      now,
		step:     models.FirstStep,
	}
}

// Step is the current step, 1..6
func (c *Controller) Step() int { return c.step }

// Submitted reports whether the terminal state was reached
func (c *Controller) Submitted() bool { return c.submitted }

// Phone is the candidate's phone number
func (c *Controller) Phone() string { return c.phone }

// ApplicationID is nil until the first draft save
func (c *Controller) ApplicationID() *uuid.UUID { return c.appID }

// Data returns a copy of the form
func (c *Controller) Data() models.ApplicationData { return c.data }

// Flags returns the verification flags
func (c *Controller) Flags() models.VerificationFlags { return c.flags }

// Staged returns the names of documents waiting for upload
func (c *Controller) Staged() []string {
	names := make([]string, len(c.staged))
	for i, f := range c.staged {
		names[i] = f.Name
	}
	return names
}

// SendOTP asks for a phone OTP
func (c *Controller) SendOTP(ctx context.Context, phone string) (*models.SendOTPResponse, error) {
	return c.verifier.SendOTP(ctx, phone)
}

// VerifyPhone verifies the OTP and starts the wizard, rehydrating any draft
// the server returned with the token.
func (c *Controller) VerifyPhone(ctx context.Context, phone, otp string) error {
	resp, err := c.verifier.VerifyOTP(ctx, phone, otp)
	if err != nil {
		return err
	}

	if resp.Draft != nil {
		c.hydrate(resp.Draft)
	} else {
		c.reset(phone)
	}
	c.flags.PhoneVerified = resp.Verified
	return nil
}

// Start begins the wizard for phone: at the draft's current step when a draft
// exists, otherwise at step 1 with an empty form.
func (c *Controller) Start(ctx context.Context, phone string) error {
	app, err := c.drafts.GetDraft(ctx, phone)
	switch {
	case errors.Is(err, client.ErrNotFound):
		c.reset(phone)
		return nil
	case err != nil:
		return err
	}

	c.hydrate(app)
	return nil
}

// Load is the entry point on page load: a DigiLocker callback URL resumes,
// anything else starts normally.
func (c *Controller) Load(ctx context.Context, phone, currentURL string) error {
	if IsCallbackURL(currentURL) {
		_, err := c.Resume(ctx, currentURL)
		return err
	}
	return c.Start(ctx, phone)
}

// SetField sets one form field addressed by its JSON path, e.g.
// "full_name" or "current_address.pincode".
func (c *Controller) SetField(path string, value interface{}) error {
	if err := c.editable(); err != nil {
		return err
	}

	raw, err := json.Marshal(c.data)
	if err != nil {
		return err
	}
	doc := map[string]interface{}{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}

	parts := strings.Split(path, ".")
	node := doc
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]interface{})
		if !ok {
			child = map[string]interface{}{}
			node[part] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = value

	raw, err = json.Marshal(doc)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var updated models.ApplicationData
	if err := dec.Decode(&updated); err != nil {
		if strings.Contains(err.Error(), "unknown field") {
			return fmt.Errorf("%w: %s", ErrUnknownField, path)
		}
		return fmt.Errorf("invalid value for %s: %w", path, err)
	}
	c.data = updated
	return nil
}

// Update edits the form in place
func (c *Controller) Update(fn func(*models.ApplicationData)) error {
	if err := c.editable(); err != nil {
		return err
	}
	fn(&c.data)
	return nil
}

// Stage queues a document for upload on the next successful Next.
// Staging the same slot again replaces the earlier file.
func (c *Controller) Stage(name, filename, contentType string, body []byte) error {
	if err := c.editable(); err != nil {
		return err
	}
	if !models.IsKnownDocument(name) {
		return fmt.Errorf("%w: %s", ErrUnknownDocument, name)
	}

	file := client.File{
		Name:        name,
		Filename:    filename,
		ContentType: contentType,
		Body:        bytes.NewReader(body),
	}
	for i, f := range c.staged {
		if f.Name == name {
			c.staged[i] = file
			return nil
		}
	}
	c.staged = append(c.staged, file)
	return nil
}

// Validate checks the current step without side effects
func (c *Controller) Validate() validator.FieldErrors {
	return validator.ValidateStep(c.step, &c.data, c.flags, c.now())
}

// Next validates the current step, saves the draft, uploads staged documents
// and only then advances. The stored current_step moves only after the upload
// succeeded, so a reload never lands past missing documents. Field errors are
// returned as validator.FieldErrors; save and upload failures as
// *RetryableError. Either way the step is unchanged.
func (c *Controller) Next(ctx context.Context) error {
	if err := c.editable(); err != nil {
		return err
	}
	if c.step >= models.LastStep {
		return ErrLastStep
	}

	if errs := c.Validate(); !errs.Valid() {
		return errs
	}

	if len(c.staged) > 0 {
		if err := c.save(ctx, c.step); err != nil {
			return err
		}
		if err := c.uploadStaged(ctx); err != nil {
			return err
		}
	}

	next := c.step + 1
	if err := c.save(ctx, next); err != nil {
		return err
	}

	c.step = next
	return nil
}

// Back moves one step back without validation
func (c *Controller) Back() int {
	if !c.submitted && c.step > models.FirstStep {
		c.step--
	}
	return c.step
}

// Save persists the draft at the current step without advancing
func (c *Controller) Save(ctx context.Context) error {
	if err := c.editable(); err != nil {
		return err
	}
	return c.save(ctx, c.step)
}

// VerifyPAN checks the PAN on the form with the vendor and records the outcome
func (c *Controller) VerifyPAN(ctx context.Context) (*models.VerifyPANResponse, error) {
	if err := c.editable(); err != nil {
		return nil, err
	}
	if !validator.IsValidPAN(validator.NormalizePAN(c.data.PANNumber)) {
		return nil, validator.FieldErrors{"pan_number": "PAN must look like ABCDE1234F"}
	}

	resp, err := c.verifier.VerifyPAN(ctx, models.VerifyPANRequest{
		PAN:           c.data.PANNumber,
		Name:          c.data.FullName,
		DateOfBirth:   c.data.DateOfBirth,
		ApplicationID: c.appID,
	})
	if err != nil {
		return nil, err
	}
	c.flags.PANVerified = resp.Verified
	return resp, nil
}

// BeginAadhaarEsign saves the draft, opens a vendor session and records the
// suspend marker. It returns the vendor URL to send the candidate to.
func (c *Controller) BeginAadhaarEsign(ctx context.Context, redirectURL string) (string, error) {
	if err := c.editable(); err != nil {
		return "", err
	}
	if c.step != models.StepIdentity {
		return "", ErrNotVerificationStep
	}

	if err := c.save(ctx, c.step); err != nil {
		return "", err
	}

	resp, err := c.verifier.InitiateAadhaarEsign(ctx, models.InitiateAadhaarRequest{
		ApplicationID: *c.appID,
		RedirectURL:   redirectURL,
	})
	if err != nil {
		return "", err
	}
	c.txID = resp.TransactionID

	marker := Suspended{
		Phone:         c.phone,
		ApplicationID: *c.appID,
		TransactionID: resp.TransactionID,
		ResumeToken:   resp.ResumeToken,
		CreatedAt:     c.now(),
	}
	if err := c.suspend.Put(ctx, marker); err != nil {
		return "", &RetryableError{Op: "remember e-sign session", Err: err}
	}
	return resp.RedirectURL, nil
}

// CheckAadhaarStatus polls the open e-Sign session
func (c *Controller) CheckAadhaarStatus(ctx context.Context) (*models.AadhaarStatusResponse, error) {
	if c.txID == "" {
		return nil, ErrNoApplication
	}
	resp, err := c.verifier.CheckAadhaarStatus(ctx, c.txID)
	if err != nil {
		return nil, err
	}
	c.flags.AadhaarVerified = resp.Verified
	return resp, nil
}

// Callback holds the vendor parameters of a DigiLocker return URL
type Callback struct {
	ClientID    string
	Status      string // as claimed by the browser; never trusted
	ResumeToken string
}

// ParseCallback extracts the DigiLocker parameters from a return URL
func ParseCallback(rawURL string) (*Callback, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCallback, err)
	}
	q := u.Query()
	if q.Get("type") != "digilocker" || q.Get("client_id") == "" {
		return nil, ErrNotCallback
	}
	return &Callback{
		ClientID:    q.Get("client_id"),
		Status:      q.Get("status"),
		ResumeToken: q.Get("resume"),
	}, nil
}

// IsCallbackURL reports whether rawURL is a DigiLocker return URL
func IsCallbackURL(rawURL string) bool {
	_, err := ParseCallback(rawURL)
	return err == nil
}

// Resume handles the return from the vendor. The status is confirmed with the
// server, the draft is reloaded and the wizard lands on the verification step
// whatever the saved step was.
func (c *Controller) Resume(ctx context.Context, callbackURL string) (*models.ResumeResponse, error) {
	cb, err := ParseCallback(callbackURL)
	if err != nil {
		return nil, err
	}

	marker, err := c.suspend.Get(ctx)
	if err != nil {
		return nil, err
	}

	token := cb.ResumeToken
	if marker != nil {
		if marker.TransactionID != cb.ClientID {
			return nil, ErrResumeMismatch
		}
		if token == "" {
			token = marker.ResumeToken
		}
	}
	if token == "" {
		return nil, ErrResumeMismatch
	}

	resp, err := c.verifier.Resume(ctx, token, cb.ClientID)
	if err != nil {
		if errors.Is(err, client.ErrSessionExpired) {
			_ = c.suspend.Clear(ctx)
		}
		return nil, err
	}

	app := resp.Application
	if app == nil {
		if marker == nil {
			return nil, ErrNoApplication
		}
		app, err = c.drafts.GetDraft(ctx, marker.Phone)
		if err != nil {
			return nil, &RetryableError{Op: "reload draft", Err: err}
		}
	}
	c.hydrate(app)
	c.txID = cb.ClientID
	c.flags.AadhaarVerified = resp.Verified
	c.step = models.StepIdentity

	if err := c.suspend.Clear(ctx); err != nil {
		return nil, err
	}
	return resp, nil
}

// Submit finishes the wizard. It is only possible from the verification step
// once Aadhaar is verified and every step is valid.
func (c *Controller) Submit(ctx context.Context) (*models.Application, error) {
	if err := c.editable(); err != nil {
		return nil, err
	}
	if c.step != models.StepIdentity {
		return nil, ErrNotVerificationStep
	}

	if errs := validator.ValidateAll(&c.data, c.flags, c.now()); !errs.Valid() {
		return nil, errs
	}

	if err := c.save(ctx, c.step); err != nil {
		return nil, err
	}
	if err := c.uploadStaged(ctx); err != nil {
		return nil, err
	}

	app, err := c.drafts.Submit(ctx, *c.appID)
	if err != nil {
		return nil, err
	}
	c.submitted = true
	_ = c.suspend.Clear(ctx)
	return app, nil
}

func (c *Controller) editable() error {
	switch {
	case !c.started:
		return ErrNotStarted
	case c.submitted:
		return ErrSubmitted
	}
	return nil
}

func (c *Controller) save(ctx context.Context, step int) error {
	app, err := c.drafts.SaveDraft(ctx, models.SaveDraftRequest{
		Phone:       c.phone,
		CurrentStep: step,
		Data:        c.data,
	})
	if err != nil {
		var fieldErrs validator.FieldErrors
		var apiErr *client.APIError
		switch {
		case errors.As(err, &fieldErrs):
			return fieldErrs
		case errors.As(err, &apiErr) && len(apiErr.Fields) > 0:
			return validator.FieldErrors(apiErr.Fields)
		}
		return &RetryableError{Op: "save draft", Err: err}
	}

	id := app.ID
	c.appID = &id
	c.flags = app.VerificationFlags
	if app.AadhaarTransactionID != nil {
		c.txID = *app.AadhaarTransactionID
	}
	return nil
}

func (c *Controller) uploadStaged(ctx context.Context) error {
	if len(c.staged) == 0 {
		return nil
	}
	if c.appID == nil {
		return ErrNoApplication
	}

	if _, err := c.uploads.Upload(ctx, *c.appID, c.staged); err != nil {
		// Readers were consumed; rewind them for the retry.
		for _, f := range c.staged {
			if r, ok := f.Body.(*bytes.Reader); ok {
				r.Seek(0, io.SeekStart)
			}
		}
		return &RetryableError{Op: "upload documents", Err: err}
	}
	c.staged = nil
	return nil
}

func (c *Controller) reset(phone string) {
	c.started = true
	c.submitted = false
	c.step = models.FirstStep
	c.phone = phone
	c.appID = nil
	c.txID = ""
	c.data = models.ApplicationData{Phone: phone}
	c.flags = models.VerificationFlags{}
	c.staged = nil
}

func (c *Controller) hydrate(app *models.Application) {
	c.started = true
	c.submitted = app.Status != "" && app.Status != models.StatusDraft
	c.phone = app.Phone
	id := app.ID
	c.appID = &id
	c.data = app.Data
	if c.data.Phone == "" {
		c.data.Phone = app.Phone
	}
	c.flags = app.VerificationFlags
	c.txID = ""
	if app.AadhaarTransactionID != nil {
		c.txID = *app.AadhaarTransactionID
	}

	c.step = app.CurrentStep
	if c.step < models.FirstStep {
		c.step = models.FirstStep
	}
	if c.step > models.LastStep {
		c.step = models.LastStep
	}
}
