package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/plastinin/ot2protocol/internal/domain"
)

type testRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]domain.Job
	err  error
}

func newTestRepo() *testRepo {
	return &testRepo{jobs: make(map[uuid.UUID]domain.Job)}
}

func (r *testRepo) Create(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &job, nil
}

func (r *testRepo) Update(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return domain.ErrJobNotFound
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *testRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return domain.ErrJobNotFound
	}
	delete(r.jobs, id)
	return nil
}

func (r *testRepo) List(ctx context.Context, filter domain.JobFilter, pagination domain.Pagination) (*domain.JobListResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var jobs []*domain.Job
	for _, job := range r.jobs {
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		job := job
		jobs = append(jobs, &job)
	}
	return &domain.JobListResult{Jobs: jobs, Total: len(jobs), Pagination: pagination}, nil
}

func (r *testRepo) ListCreatedBefore(ctx context.Context, before time.Time, limit int) ([]*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var jobs []*domain.Job
	for _, job := range r.jobs {
		if job.CreatedAt.Before(before) {
			job := job
			jobs = append(jobs, &job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (r *testRepo) get(id uuid.UUID) domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

func (r *testRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

type testStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	seq       int
	failAfter int // uploads allowed before failing, -1 for never
	failGet   bool
}

func newTestStorage() *testStorage {
	return &testStorage{
		objects:   make(map[string][]byte),
		types:     make(map[string]string),
		failAfter: -1,
	}
}

func (s *testStorage) Upload(ctx context.Context, fileName string, contentType string, reader io.Reader, size int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter == 0 {
		return "", errors.New("storage unavailable")
	}
	if s.failAfter > 0 {
		s.failAfter--
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	s.seq++
	key := fmt.Sprintf("%d/%s", s.seq, fileName)
	s.objects[key] = data
	s.types[key] = contentType
	return key, nil
}

func (s *testStorage) Download(ctx context.Context, fileKey string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, errors.New("storage unavailable")
	}
	data, ok := s.objects[fileKey]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *testStorage) Delete(ctx context.Context, fileKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, fileKey)
	return nil
}

func (s *testStorage) GetURL(ctx context.Context, fileKey string) (string, error) {
	return "http://storage/" + fileKey, nil
}

func (s *testStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type testQueue struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (q *testQueue) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, jobID)
	return nil
}

func file(name, content string) *UploadedFile {
	return &UploadedFile{Name: name, Size: int64(len(content)), Reader: strings.NewReader(content)}
}

const (
	testTemplate = `# edit date <edit_date>
_all_values = json.loads("""{
    "plate_type":"<plate_type>",
    "uploaded_csv":"<uploaded_csv>"
    }""")
`
	testConfig = "params:\n  plate_type: biorad_96\ncsv:\n  uploaded_csv: data.csv\n"
	testCSV    = "Position,Value\nA1,2.5\n"
)

func testInput() SubmitInput {
	return SubmitInput{
		Template: file("fill_template.py", testTemplate),
		Config:   file("config.yaml", testConfig),
		CSV:      file("data.csv", testCSV),
	}
}
