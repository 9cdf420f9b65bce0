package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"procureflow.io/procureflow/internal/blob"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/testutil"
)

func newAttachmentService(t *testing.T, maxBytes int64) (*AttachmentService, *testutil.Fixture) {
	t.Helper()
	f := testutil.NewFixture(t)
	svc := NewAttachmentService(f.Store, blob.NewMemory(), maxBytes, []string{"pdf", "png", "xlsx"})
	return svc, f
}

func TestAttachmentValidateFilename(t *testing.T) {
	t.Parallel()
	svc, _ := newAttachmentService(t, 1<<20)

	tests := []struct {
		name     string
		filename string
		wantErr  bool
	}{
		{name: "allowed pdf", filename: "quote.pdf"},
		{name: "allowed uppercase extension", filename: "SCAN.PDF"},
		{name: "allowed spreadsheet", filename: "budget.xlsx"},
		{name: "executable rejected", filename: "payload.exe", wantErr: true},
		{name: "no extension", filename: "README", wantErr: true},
		{name: "trailing dot", filename: "notes.", wantErr: true},
		{name: "double extension uses last", filename: "archive.pdf.zip", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := svc.ValidateFilename(tc.filename)
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("ValidateFilename(%q) error = %v", tc.filename, err)
				}
				return
			}
			appErr, ok := apperrors.IsAppError(err)
			if !ok || appErr.Code != apperrors.CodeAttachmentExtension {
				t.Fatalf("ValidateFilename(%q) error = %v, want code %s", tc.filename, err, apperrors.CodeAttachmentExtension)
			}
		})
	}
}

func TestAttachmentStoreRoundTrip(t *testing.T) {
	t.Parallel()
	svc, _ := newAttachmentService(t, 1<<20)
	ctx := context.Background()

	payload := "invoice body"
	ref, size, err := svc.Store(ctx, "invoice.pdf", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if size != int64(len(payload)) {
		t.Fatalf("Store() size = %d, want %d", size, len(payload))
	}

	rc, err := svc.Open(ctx, ref)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != payload {
		t.Fatalf("round trip = %q, want %q", got, payload)
	}
}

func TestAttachmentStoreSizeCeiling(t *testing.T) {
	t.Parallel()
	svc, _ := newAttachmentService(t, 16)
	ctx := context.Background()

	t.Run("at the limit", func(t *testing.T) {
		if _, size, err := svc.Store(ctx, "ok.pdf", strings.NewReader(strings.Repeat("a", 16))); err != nil {
			t.Fatalf("Store() error = %v", err)
		} else if size != 16 {
			t.Fatalf("Store() size = %d, want 16", size)
		}
	})

	t.Run("one byte over", func(t *testing.T) {
		_, _, err := svc.Store(ctx, "big.pdf", strings.NewReader(strings.Repeat("a", 17)))
		appErr, ok := apperrors.IsAppError(err)
		if !ok || appErr.Code != apperrors.CodeAttachmentTooLarge {
			t.Fatalf("Store() error = %v, want code %s", err, apperrors.CodeAttachmentTooLarge)
		}
	})
}

func TestAttachmentCategories(t *testing.T) {
	t.Parallel()
	svc, f := newAttachmentService(t, 1<<20)
	ctx := context.Background()

	quote := f.MustCategory(t, "Quotation", true)
	f.MustCategory(t, "Reference", false)

	got, err := svc.CategoryByName(ctx, f.Team.ID, "Quotation")
	if err != nil {
		t.Fatalf("CategoryByName() error = %v", err)
	}
	if got.ID != quote.ID {
		t.Fatalf("CategoryByName() = %s, want %s", got.ID, quote.ID)
	}

	_, err = svc.CategoryByName(ctx, f.Team.ID, "Blueprints")
	appErr, ok := apperrors.IsAppError(err)
	if !ok || appErr.Code != apperrors.CodeCategoryUnknown {
		t.Fatalf("CategoryByName() error = %v, want code %s", err, apperrors.CodeCategoryUnknown)
	}

	required, err := svc.RequiredCategories(ctx, f.Team.ID)
	if err != nil {
		t.Fatalf("RequiredCategories() error = %v", err)
	}
	if len(required) != 1 || required[0].ID != quote.ID {
		t.Fatalf("RequiredCategories() = %+v, want only %s", required, quote.ID)
	}
}

func TestAttachmentGetByIDMissing(t *testing.T) {
	t.Parallel()
	svc, _ := newAttachmentService(t, 1<<20)

	_, err := svc.GetByID(context.Background(), "no-such-attachment")
	appErr, ok := apperrors.IsAppError(err)
	if !ok || appErr.Code != apperrors.CodeAttachmentNotFound {
		t.Fatalf("GetByID() error = %v, want code %s", err, apperrors.CodeAttachmentNotFound)
	}
}
