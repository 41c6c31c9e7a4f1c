package credentials

import (
	"sync"
)

// Sector is one erasable flash region holding the credential record.
// Erase must leave the region reading as 0xFF.
type Sector interface {
	ReadAt(p []byte, off int64) (int, error)
	Erase() error
	Program(p []byte) error
}

// SectorStore keeps the record at offset 0 of a flash sector.
type SectorStore struct {
	mu     sync.Mutex
	sector Sector
}

// NewSectorStore returns a Store backed by s.
func NewSectorStore(s Sector) *SectorStore {
	return &SectorStore{sector: s}
}

func (s *SectorStore) Load() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf [RecordSize]byte
	if _, err := s.sector.ReadAt(buf[:], 0); err != nil {
		return Credentials{}, err
	}
	return UnmarshalRecord(buf[:])
}

func (s *SectorStore) Save(c Credentials) error {
	rec, err := MarshalRecord(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(rec)
}

// Erase replaces the record with a tombstone.
func (s *SectorStore) Erase() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(tombstone())
}

func (s *SectorStore) write(rec []byte) error {
	if err := s.sector.Erase(); err != nil {
		return err
	}
	return s.sector.Program(rec)
}

// MemorySector is a RAM-backed Sector, used by tests and the host build.
type MemorySector struct {
	mu   sync.Mutex
	data [RecordSize]byte
}

// NewMemorySector returns a blank sector.
func NewMemorySector() *MemorySector {
	m := &MemorySector{}
	m.Erase()
	return m
}

func (m *MemorySector) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off >= int64(len(m.data)) {
		return 0, nil
	}
	return copy(p, m.data[off:]), nil
}

func (m *MemorySector) Erase() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.data {
		m.data[i] = 0xFF
	}
	return nil
}

// Program ANDs p into the sector, as NOR flash does.
func (m *MemorySector) Program(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < len(p) && i < len(m.data); i++ {
		m.data[i] &= p[i]
	}
	return nil
}
