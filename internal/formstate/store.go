// Package formstate owns the single in-progress intake form and the
// region/city cascade attached to it.
package formstate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"neurolink/internal/location"
	"neurolink/internal/media"
	"neurolink/internal/utils"
	"neurolink/pkg/types"

	"github.com/go-playground/form/v4"
	"github.com/sirupsen/logrus"
)

const (
	fieldRegion = "regionId"
	fieldCity   = "cityId"
)

var (
	ErrUnknownField    = errors.New("unknown form field")
	ErrCityNeedsRegion = errors.New("a region must be selected before a city")
	ErrInvalidValue    = errors.New("invalid value for form field")
)

// Policy decides which city list wins when region changes overlap.
type Policy int

const (
	// LastResolvedWins applies every city response as it arrives, so a slow
	// response for an earlier region can replace a newer list.
	LastResolvedWins Policy = iota
	// LastIssuedWins drops responses for anything but the latest region
	// change.
	LastIssuedWins
)

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last-resolved":
		return LastResolvedWins, nil
	case "last-issued":
		return LastIssuedWins, nil
	}
	return 0, fmt.Errorf("unknown city policy %q, expected last-resolved or last-issued", s)
}

func (p Policy) String() string {
	if p == LastIssuedWins {
		return "last-issued"
	}
	return "last-resolved"
}

var (
	decoder    = form.NewDecoder()
	fieldIndex = utils.TagIndexes(types.FormState{}, "form")
)

// Snapshot is a consistent read of the form and the lists shown next to it.
type Snapshot struct {
	State   types.FormState
	Regions []types.Region
	Cities  []types.City
}

// CityFetch tracks one asynchronous city list request.
type CityFetch struct {
	RegionID string

	done    chan struct{}
	cities  []types.City
	applied bool
}

func newCityFetch(regionID string) *CityFetch {
	return &CityFetch{RegionID: regionID, done: make(chan struct{})}
}

// Done is closed once the response was received and either applied or
// dropped.
func (f *CityFetch) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the fetch completes or ctx ends.
func (f *CityFetch) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cities is only meaningful after Done.
func (f *CityFetch) Cities() []types.City {
	return f.cities
}

// Applied reports whether the response replaced the store's city list.
func (f *CityFetch) Applied() bool {
	return f.applied
}

type Option func(*Store)

func WithPolicy(p Policy) Option {
	return func(s *Store) { s.policy = p }
}

// WithState seeds the store, e.g. from a saved draft.
func WithState(state types.FormState) Option {
	return func(s *Store) {
		s.state = state.Clone()
		if strings.TrimSpace(s.state.RegionID) == "" {
			s.state.RegionID = ""
			s.state.CityID = ""
		}
	}
}

func WithRegions(regions []types.Region) Option {
	return func(s *Store) { s.regions = append([]types.Region(nil), regions...) }
}

func WithCities(cities []types.City) Option {
	return func(s *Store) { s.cities = append([]types.City(nil), cities...) }
}

// WithContext sets the context used by fetches that SetField starts.
func WithContext(ctx context.Context) Option {
	return func(s *Store) { s.ctx = ctx }
}

// Store is safe for concurrent use. Every mutation is one locked
// transition; readers always see a complete state.
type Store struct {
	fetcher location.Fetcher
	logger  logrus.FieldLogger
	policy  Policy
	ctx     context.Context

	mu         sync.RWMutex
	state      types.FormState
	regions    []types.Region
	cities     []types.City
	generation uint64
}

func New(fetcher location.Fetcher, logger logrus.FieldLogger, opts ...Option) *Store {
	s := &Store{
		fetcher: fetcher,
		logger:  logger,
		ctx:     context.Background(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Store) Policy() Policy {
	return s.policy
}

// Get returns a deep copy of the current form.
func (s *Store) Get() types.FormState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		State:   s.state.Clone(),
		Regions: append([]types.Region(nil), s.regions...),
		Cities:  append([]types.City(nil), s.cities...),
	}
}

func (s *Store) Regions() []types.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Region(nil), s.regions...)
}

func (s *Store) Cities() []types.City {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.City(nil), s.cities...)
}

// LoadRegions fetches the region list and keeps it for rendering.
func (s *Store) LoadRegions(ctx context.Context) []types.Region {
	regions := s.fetcher.FetchRegions(ctx)

	s.mu.Lock()
	s.regions = append([]types.Region(nil), regions...)
	s.mu.Unlock()

	return regions
}

// SetField replaces one field addressed by its form name. Nested fields
// use a dotted name, e.g. "symptoms.incontinence". Setting regionId goes
// through SetRegion and starts a city fetch.
func (s *Store) SetField(name, value string) error {
	switch name {
	case fieldRegion:
		s.SetRegion(s.ctx, value)
		return nil
	case fieldCity:
		return s.setCity(value)
	}

	index, ok := fieldIndex[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}

	var decoded types.FormState
	if strings.TrimSpace(value) != "" {
		if err := decoder.Decode(&decoded, url.Values{name: {value}}); err != nil {
			return fmt.Errorf("%w %s: %v", ErrInvalidValue, name, err)
		}
		if err := checkEnums(decoded); err != nil {
			return fmt.Errorf("%w %s: %v", ErrInvalidValue, name, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := reflect.ValueOf(&s.state).Elem().FieldByIndex(index)
	target.Set(reflect.ValueOf(decoded).FieldByIndex(index))

	return nil
}

// SetNestedField replaces one entry of a nested group such as symptoms.
func (s *Store) SetNestedField(group, field, value string) error {
	return s.SetField(group+"."+field, value)
}

func (s *Store) setCity(cityID string) error {
	cityID = strings.TrimSpace(cityID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if cityID != "" && s.state.RegionID == "" {
		return ErrCityNeedsRegion
	}

	s.state.CityID = cityID
	return nil
}

// SetRegion sets the region, clearing the city and the city list in the
// same transition, then fetches the new list in the background. An empty
// region starts no fetch and returns nil.
func (s *Store) SetRegion(ctx context.Context, regionID string) *CityFetch {
	regionID = strings.TrimSpace(regionID)

	s.mu.Lock()
	s.state.RegionID = regionID
	s.state.CityID = ""
	s.cities = nil
	s.generation++
	generation := s.generation
	s.mu.Unlock()

	if regionID == "" {
		return nil
	}

	fetch := newCityFetch(regionID)

	go func() {
		defer close(fetch.done)

		cities := s.fetcher.FetchCities(ctx, regionID)
		fetch.cities = cities
		fetch.applied = s.applyCities(regionID, generation, cities)
	}()

	return fetch
}

func (s *Store) applyCities(regionID string, generation uint64, cities []types.City) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.RegionID == "" {
		return false
	}

	if s.policy == LastIssuedWins && generation != s.generation {
		s.logger.WithFields(logrus.Fields{
			"region_id":      regionID,
			"current_region": s.state.RegionID,
		}).Debug("dropping stale city list")
		return false
	}

	s.cities = append([]types.City(nil), cities...)
	return true
}

// SetAttachment stores or clears a media attachment. A non-nil attachment
// must carry a URI.
func (s *Store) SetAttachment(kind media.Kind, attachment *types.Attachment) error {
	if attachment != nil && strings.TrimSpace(attachment.URI) == "" {
		return fmt.Errorf("%w %s: attachment has no uri", ErrInvalidValue, kind.FieldName())
	}

	var stored *types.Attachment
	if attachment != nil {
		copied := *attachment
		stored = &copied
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case media.KindImage:
		s.state.MRIPhoto = stored
	case media.KindVideo:
		s.state.SeizureVideo = stored
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, kind)
	}

	return nil
}

// Reset replaces the form with an empty one. The region list survives,
// in-flight city fetches are invalidated.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = types.FormState{}
	s.cities = nil
	s.generation++
}

func checkEnums(f types.FormState) error {
	if f.Gender != "" && f.Gender != types.GenderMale && f.Gender != types.GenderFemale {
		return fmt.Errorf("gender must be M or F")
	}
	if !f.SeizureOccurrence.Valid() {
		return fmt.Errorf("unknown occurrence %q", f.SeizureOccurrence)
	}
	if !f.SeizureType.Valid() {
		return fmt.Errorf("unknown seizure type %q", f.SeizureType)
	}
	switch f.Symptoms.TongueBitingLocation {
	case types.TongueBitingNone, types.TongueBitingLateral, types.TongueBitingTip:
	default:
		return fmt.Errorf("unknown tongue biting location %q", f.Symptoms.TongueBitingLocation)
	}
	return nil
}
