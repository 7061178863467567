package wizard

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/pkg/client"
	"github.com/google/uuid"
)

const testPhone = "9876543210"

var today = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

var errOffline = errors.New("connection reset by peer")

// fakeAPI is an in-memory stand-in for the onboarding API
type fakeAPI struct {
	draft       *models.Application
	saves       []models.SaveDraftRequest
	uploaded    map[string]string
	saveErr     error
	uploadErr   error
	resumeErr   error
	submitted   bool
	panVerified bool
	esignDone   bool // what the vendor reports, regardless of the callback URL
	resumeCalls []string
	bareResume  bool // Resume answers without the application
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{uploaded: map[string]string{}, panVerified: true}
}

func (f *fakeAPI) GetDraft(ctx context.Context, phone string) (*models.Application, error) {
	if f.draft == nil || f.draft.Phone != phone {
		return nil, &client.APIError{StatusCode: http.StatusNotFound, Code: "APPLICATION_NOT_FOUND"}
	}
	app := *f.draft
	return &app, nil
}

func (f *fakeAPI) SaveDraft(ctx context.Context, req models.SaveDraftRequest) (*models.Application, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.saves = append(f.saves, req)
	if f.draft == nil {
		f.draft = &models.Application{ID: uuid.New(), Phone: req.Phone, Status: models.StatusDraft}
	}
	f.draft.CurrentStep = req.CurrentStep
	f.draft.Data = req.Data
	f.draft.PhoneVerified = true
	app := *f.draft
	return &app, nil
}

func (f *fakeAPI) Submit(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	if !f.draft.AadhaarVerified {
		return nil, &client.APIError{StatusCode: http.StatusBadRequest, Code: "VALIDATION_FAILED"}
	}
	f.submitted = true
	f.draft.Status = models.StatusSubmitted
	app := *f.draft
	return &app, nil
}

func (f *fakeAPI) Upload(ctx context.Context, id uuid.UUID, files []client.File) ([]models.Document, error) {
	if f.uploadErr != nil {
		// drain like a real request would
		for _, file := range files {
			io.Copy(io.Discard, file.Body)
		}
		return nil, f.uploadErr
	}
	docs := make([]models.Document, 0, len(files))
	for _, file := range files {
		body, _ := io.ReadAll(file.Body)
		f.uploaded[file.Name] = string(body)
		docs = append(docs, models.Document{ApplicationID: id, Name: file.Name, Size: int64(len(body))})
	}
	return docs, nil
}

func (f *fakeAPI) SendOTP(ctx context.Context, phone string) (*models.SendOTPResponse, error) {
	return &models.SendOTPResponse{Message: "sent", ExpiresIn: 300}, nil
}

func (f *fakeAPI) VerifyOTP(ctx context.Context, phone, otp string) (*models.VerifyOTPResponse, error) {
	if otp != "123456" {
		return nil, &client.APIError{StatusCode: http.StatusBadRequest, Code: "INVALID_OTP"}
	}
	resp := &models.VerifyOTPResponse{Verified: true, Token: "candidate-token"}
	if f.draft != nil && f.draft.Phone == phone {
		app := *f.draft
		resp.Draft = &app
	}
	return resp, nil
}

func (f *fakeAPI) VerifyPAN(ctx context.Context, req models.VerifyPANRequest) (*models.VerifyPANResponse, error) {
	if f.draft != nil && req.ApplicationID != nil && f.panVerified {
		f.draft.PANVerified = true
	}
	return &models.VerifyPANResponse{Verified: f.panVerified, Name: req.Name, Status: "valid"}, nil
}

func (f *fakeAPI) InitiateAadhaarEsign(ctx context.Context, req models.InitiateAadhaarRequest) (*models.InitiateAadhaarResponse, error) {
	tx := "digilocker_client_42"
	f.draft.AadhaarTransactionID = &tx
	return &models.InitiateAadhaarResponse{
		TransactionID: tx,
		RedirectURL:   "https://vendor.example/digilocker?session=" + tx,
		ResumeToken:   "resume-token-1",
		ExpiresAt:     today.Add(30 * time.Minute),
	}, nil
}

func (f *fakeAPI) CheckAadhaarStatus(ctx context.Context, transactionID string) (*models.AadhaarStatusResponse, error) {
	if f.esignDone {
		f.draft.AadhaarVerified = true
		return &models.AadhaarStatusResponse{Verified: true, Status: "completed"}, nil
	}
	return &models.AadhaarStatusResponse{Verified: false, Status: "pending"}, nil
}

func (f *fakeAPI) Resume(ctx context.Context, resumeToken, clientID string) (*models.ResumeResponse, error) {
	f.resumeCalls = append(f.resumeCalls, resumeToken+"|"+clientID)
	if f.resumeErr != nil {
		return nil, f.resumeErr
	}
	if f.esignDone {
		f.draft.AadhaarVerified = true
	}
	resp := &models.ResumeResponse{
		Verified: f.esignDone,
		Status:   map[bool]string{true: "completed", false: "pending"}[f.esignDone],
		Token:    "fresh-token",
	}
	if !f.bareResume {
		app := *f.draft
		resp.Application = &app
	}
	return resp, nil
}

// memSuspend is a SuspendStore in memory
type memSuspend struct {
	marker *Suspended
	putErr error
}

func (m *memSuspend) Put(ctx context.Context, s Suspended) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.marker = &s
	return nil
}

func (m *memSuspend) Get(ctx context.Context) (*Suspended, error) {
	return m.marker, nil
}

func (m *memSuspend) Clear(ctx context.Context) error {
	m.marker = nil
	return nil
}

func completeData() models.ApplicationData {
	addr := models.Address{Line1: "12 MG Road", City: "Bengaluru", State: "Karnataka", Pincode: "560001"}
	return models.ApplicationData{
		FullName:              "Rahul Sharma",
		DateOfBirth:           "1998-04-12",
		Gender:                "male",
		Phone:                 testPhone,
		Email:                 "rahul@example.com",
		CurrentAddress:        addr,
		PermanentAddress:      addr,
		HighestQualification:  "B.Com",
		Institution:           "Christ University",
		YearOfPassing:         2019,
		UniformSize:           "M",
		ShoeSize:              9,
		EmergencyContactName:  "Meena Sharma",
		EmergencyContactPhone: "9123456780",
		Role:                  "Crew Member",
		OutletCode:            "BLR-001",
		DateOfJoining:         "2024-07-01",
		PANNumber:             "ABCDE1234F",
		AadhaarNumber:         "123412341234",
	}
}

func newController(api *fakeAPI, suspend *memSuspend) *Controller {
	return New(Deps{
		Drafts:   api,
		Uploads:  api,
		Verifier: api,
		Suspend:  suspend,
		Now:      func() time.Time { return today },
	})
}
