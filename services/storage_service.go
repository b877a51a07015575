package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"

	config "github.com/orchardhire/marketplace/configs"
)

// Storage is the narrow file-store surface the workflow depends on. The core
// only holds and passes around the returned path.
type Storage interface {
	Store(ctx context.Context, file io.Reader, folder string) (string, error)
	Delete(ctx context.Context, path string) error
}

// CloudinaryStorage stores files under the configured Cloudinary account. The
// returned path is the Cloudinary public ID, which is also what Delete expects.
type CloudinaryStorage struct {
	URL string
}

func (s *CloudinaryStorage) Store(ctx context.Context, file io.Reader, folder string) (string, error) {
	cld, err := cloudinary.NewFromURL(s.URL)
	if err != nil {
		return "", err
	}

	publicID := fmt.Sprintf("%s/%s", folder, uuid.New().String())
	resp, err := cld.Upload.Upload(ctx, file, uploader.UploadParams{
		PublicID:     publicID,
		Folder:       folder,
		ResourceType: "auto",
	})
	if err != nil {
		return "", err
	}
	return resp.PublicID, nil
}

func (s *CloudinaryStorage) Delete(ctx context.Context, path string) error {
	cld, err := cloudinary.NewFromURL(s.URL)
	if err != nil {
		return err
	}
	_, err = cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: path})
	return err
}

// MemoryStorage keeps files in a map. It backs tests and local development
// when CLOUDINARY_URL is not configured.
type MemoryStorage struct {
	mu    sync.Mutex
	seq   int
	files map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{files: make(map[string][]byte)}
}

func (s *MemoryStorage) Store(ctx context.Context, file io.Reader, folder string) (string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	path := fmt.Sprintf("%s/mem-%d", folder, s.seq)
	s.files[path] = data
	return path, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}

// Has reports whether a stored file still exists.
func (s *MemoryStorage) Has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

// Count returns the number of stored files.
func (s *MemoryStorage) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

var (
	activeStorage     Storage
	activeStorageOnce sync.Once
)

// ActiveStorage returns the process-wide storage backend, Cloudinary when
// configured and an in-memory fallback otherwise.
func ActiveStorage() Storage {
	activeStorageOnce.Do(func() {
		url := config.Config("CLOUDINARY_URL")
		if url == "" {
			log.Println("⚠️ CLOUDINARY_URL not set, using in-memory file storage")
			activeStorage = NewMemoryStorage()
			return
		}
		activeStorage = &CloudinaryStorage{URL: url}
	})
	return activeStorage
}
