package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/aivon/aivon/internal/filestore"
	"github.com/aivon/aivon/internal/model"
	appErr "github.com/aivon/aivon/internal/pkg/errors"
	"github.com/aivon/aivon/internal/rag"
	"github.com/aivon/aivon/internal/repo"
)

// MaxDocumentSize bounds uploads; text documents larger than this are
// almost always the wrong file.
const MaxDocumentSize = 10 << 20

type DocumentService struct {
	docs  *repo.DocumentRepo
	rag   *rag.Service
	store filestore.Store
}

func NewDocumentService(docs *repo.DocumentRepo, ragService *rag.Service, store filestore.Store) *DocumentService {
	return &DocumentService{docs: docs, rag: ragService, store: store}
}

// Upload stores the original file, then chunks and embeds it for retrieval.
func (s *DocumentService) Upload(ctx context.Context, userID, filename, contentType string, r io.Reader) (*model.Document, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return nil, fmt.Errorf("%w: filename is required", appErr.ErrInvalid)
	}
	raw, err := io.ReadAll(io.LimitReader(r, MaxDocumentSize+1))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty file", appErr.ErrInvalid)
	}
	if len(raw) > MaxDocumentSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", appErr.ErrInvalid, MaxDocumentSize)
	}

	doc := &model.Document{
		ID:          NewID(),
		UserID:      userID,
		Title:       filename,
		ContentType: contentType,
		Ctime:       time.Now().Unix(),
	}
	doc.FileKey = doc.ID + sanitizeExt(filename)
	if err := s.store.Save(ctx, doc.FileKey, bytes.NewReader(raw), int64(len(raw))); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	count, err := s.rag.Ingest(ctx, doc, raw)
	if err != nil {
		// keep the record; the user can delete and re-upload
		logutil.GetLogger(ctx).Error("document ingestion failed",
			zap.String("document_id", doc.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrInvalid, err)
	}
	doc.ChunkCount = count
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, userID string) ([]model.Document, error) {
	return s.docs.ListByUser(ctx, userID)
}

func (s *DocumentService) Get(ctx context.Context, userID, docID string) (*model.Document, error) {
	return s.docs.GetByID(ctx, userID, docID)
}

// Download opens the original uploaded bytes.
func (s *DocumentService) Download(ctx context.Context, userID, docID string) (*model.Document, io.ReadCloser, error) {
	doc, err := s.docs.GetByID(ctx, userID, docID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, doc.FileKey)
	if err != nil {
		return nil, nil, err
	}
	return doc, rc, nil
}

// Delete removes the document, its chunks, and best-effort the stored file.
func (s *DocumentService) Delete(ctx context.Context, userID, docID string) error {
	doc, err := s.docs.GetByID(ctx, userID, docID)
	if err != nil {
		return err
	}
	if err := s.rag.DeleteDocument(ctx, userID, docID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, doc.FileKey); err != nil {
		logutil.GetLogger(ctx).Warn("delete stored file failed",
			zap.String("file_key", doc.FileKey), zap.Error(err))
	}
	return nil
}

func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, c := range ext {
		if c != '.' && (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
