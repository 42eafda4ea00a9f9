package device

import (
	"sort"

	"github.com/srg/mstlink/internal/bledb"
)

// ----------------------------
// GATT Profile
// ----------------------------

// Profile is an in-memory GATT tree keyed by normalized UUIDs.
// It is built once after discovery and only read afterwards.
type Profile struct {
	services map[string]*ProfileService
}

// ProfileService is a service node of a Profile
type ProfileService struct {
	uuid            string
	knownName       string
	characteristics map[string]Characteristic
}

// NewProfile creates an empty profile
func NewProfile() *Profile {
	return &Profile{services: make(map[string]*ProfileService)}
}

// AddService returns the service node for uuid, creating it on first use.
func (p *Profile) AddService(uuid string) *ProfileService {
	key := NormalizeUUID(uuid)
	if svc, ok := p.services[key]; ok {
		return svc
	}
	svc := &ProfileService{
		uuid:            key,
		knownName:       bledb.LookupService(key),
		characteristics: make(map[string]Characteristic),
	}
	p.services[key] = svc
	return svc
}

// AddCharacteristic attaches c to the service, replacing any previous entry with the same UUID.
func (s *ProfileService) AddCharacteristic(c Characteristic) {
	s.characteristics[NormalizeUUID(c.UUID())] = c
}

func (s *ProfileService) UUID() string {
	return s.uuid
}

func (s *ProfileService) KnownName() string {
	return s.knownName
}

func (s *ProfileService) GetCharacteristics() []Characteristic {
	result := make([]Characteristic, 0, len(s.characteristics))
	for _, c := range s.characteristics {
		result = append(result, c)
	}
	// Sort by UUID for consistent ordering
	sort.Slice(result, func(i, j int) bool {
		return NormalizeUUID(result[i].UUID()) < NormalizeUUID(result[j].UUID())
	})
	return result
}

// Services returns all services sorted by UUID
func (p *Profile) Services() []Service {
	result := make([]Service, 0, len(p.services))
	for _, svc := range p.services {
		result = append(result, svc)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UUID() < result[j].UUID()
	})
	return result
}

// GetService retrieves a service by UUID in any textual form.
// Returns a NotFoundError if the service is not found.
func (p *Profile) GetService(uuid string) (Service, error) {
	svc, ok := p.services[NormalizeUUID(uuid)]
	if !ok {
		return nil, &NotFoundError{Resource: "service", UUIDs: []string{uuid}}
	}
	return svc, nil
}

// GetCharacteristic retrieves a characteristic by service and characteristic UUID.
// Returns a NotFoundError if the service or characteristic is not found.
func (p *Profile) GetCharacteristic(service, uuid string) (Characteristic, error) {
	svc, ok := p.services[NormalizeUUID(service)]
	if !ok {
		return nil, &NotFoundError{Resource: "service", UUIDs: []string{service}}
	}
	char, ok := svc.characteristics[NormalizeUUID(uuid)]
	if !ok {
		return nil, &NotFoundError{Resource: "characteristic", UUIDs: []string{service, uuid}}
	}
	return char, nil
}

// CharacteristicCount returns the number of characteristics across all services
func (p *Profile) CharacteristicCount() int {
	total := 0
	for _, svc := range p.services {
		total += len(svc.characteristics)
	}
	return total
}
