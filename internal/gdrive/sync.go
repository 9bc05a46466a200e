package gdrive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const googleDocMIME = "application/vnd.google-apps.document"

// Syncer mirrors archived clips and daily transcripts into one Drive folder.
// Files are keyed by name; a second upload under the same name replaces the
// content of the first.
type Syncer struct {
	service  *drive.Service
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewSyncer(ctx context.Context, credPath, folderID string) (*Syncer, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	return newSyncer(ctx, folderID, option.WithCredentials(config))
}

func newSyncer(ctx context.Context, folderID string, opts ...option.ClientOption) (*Syncer, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Syncer{
		service:  svc,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}, nil
}

// Upload stores the file at localPath under name with the given content type.
func (s *Syncer) Upload(ctx context.Context, localPath, name, mimeType string) error {
	if name == "" {
		name = filepath.Base(localPath)
	}
	return s.put(ctx, localPath, &drive.File{Name: name, MimeType: mimeType})
}

// SyncTranscript converts a day's markdown transcript into a Google Doc.
func (s *Syncer) SyncTranscript(ctx context.Context, localPath, date string) error {
	return s.put(ctx, localPath, &drive.File{
		Name:     "ghost-recorder-" + date,
		MimeType: googleDocMIME,
	})
}

func (s *Syncer) put(ctx context.Context, localPath string, meta *drive.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	if fileID, ok := s.fileIDs[meta.Name]; ok {
		_, err = s.service.Files.Update(fileID, &drive.File{}).Media(f).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("drive update %s: %w", meta.Name, err)
		}
		return nil
	}

	meta.Parents = []string{s.folderID}
	created, err := s.service.Files.Create(meta).Media(f).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("drive create %s: %w", meta.Name, err)
	}

	s.fileIDs[meta.Name] = created.Id
	return nil
}
