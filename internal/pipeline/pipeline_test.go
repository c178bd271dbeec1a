package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/propintel/pipeline/internal/config"
	"github.com/propintel/pipeline/internal/geocode"
	"github.com/propintel/pipeline/internal/logger"
	"github.com/propintel/pipeline/internal/models"
)

// MockParcelRepository is a mock implementation of ParcelRepository for testing
type MockParcelRepository struct {
	mock.Mock
}

func (m *MockParcelRepository) FindByBBL(ctx context.Context, bbl string) (*models.Parcel, error) {
	args := m.Called(ctx, bbl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Parcel), args.Error(1)
}

func (m *MockParcelRepository) ListAll(ctx context.Context) ([]models.Parcel, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Parcel), args.Error(1)
}

// MockRegistryRepository is a mock implementation of RegistryRepository for testing
type MockRegistryRepository struct {
	mock.Mock
}

func (m *MockRegistryRepository) ListAll(ctx context.Context) ([]models.RegistryRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RegistryRow), args.Error(1)
}

// MockSaleRepository is a mock implementation of SaleRepository for testing
type MockSaleRepository struct {
	mock.Mock
}

func (m *MockSaleRepository) ListAll(ctx context.Context) ([]*models.RawSale, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RawSale), args.Error(1)
}

func (m *MockSaleRepository) UpdateResolutions(ctx context.Context, sales []*models.RawSale) error {
	args := m.Called(ctx, sales)
	return args.Error(0)
}

// MockUnitRepository is a mock implementation of UnitRepository for testing
type MockUnitRepository struct {
	mock.Mock
}

func (m *MockUnitRepository) Refresh(ctx context.Context, units []models.CondoUnit) error {
	args := m.Called(ctx, units)
	return args.Error(0)
}

func (m *MockUnitRepository) ListMissingCoordinates(ctx context.Context) ([]models.CondoUnit, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CondoUnit), args.Error(1)
}

func (m *MockUnitRepository) UpdateLocation(ctx context.Context, unitBBL string, location models.Point) error {
	args := m.Called(ctx, unitBBL, location)
	return args.Error(0)
}

// MockPropertyRepository is a mock implementation of PropertyRepository for testing
type MockPropertyRepository struct {
	mock.Mock
}

func (m *MockPropertyRepository) ListScorable(ctx context.Context) ([]models.Property, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Property), args.Error(1)
}

func (m *MockPropertyRepository) ReplaceComps(ctx context.Context, subjectID uuid.UUID, comps []models.Comp) error {
	args := m.Called(ctx, subjectID, comps)
	return args.Error(0)
}

func (m *MockPropertyRepository) UpdateScore(ctx context.Context, id uuid.UUID, score int, confidence string) error {
	args := m.Called(ctx, id, score, confidence)
	return args.Error(0)
}

// fakeGeocoder returns a confident hit for every request.
type fakeGeocoder struct{}

func (f *fakeGeocoder) BatchNormalize(_ context.Context, requests []geocode.Request) ([]geocode.Result, error) {
	results := make([]geocode.Result, len(requests))
	lat, lng := 40.72, -73.99
	for i := range requests {
		results[i] = geocode.Result{Success: true, Confidence: 0.9, Latitude: &lat, Longitude: &lng}
	}
	return results, nil
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func intPtr(i int) *int { return &i }

func testConfig() *config.Config {
	return &config.Config{
		Env:     "test",
		Matcher: config.MatcherConfig{WriteBatchSize: 100},
		Comps:   config.CompsConfig{MaxComps: 5, MaxAdjustedPrice: 50_000_000, Seed: 1},
		Geocode: config.GeocodeConfig{BatchSize: 10, MaxPerSecond: 1000, MaxConcurrent: 2},
	}
}

func newTestPipeline(parcels *MockParcelRepository, registry *MockRegistryRepository, sales *MockSaleRepository, unitRepo *MockUnitRepository, properties *MockPropertyRepository, geocoder geocode.BatchNormalizer) *Pipeline {
	return New(testConfig(), logger.New("test"), parcels, registry, sales, unitRepo, properties, geocoder)
}

func TestMatchSales_EndToEnd(t *testing.T) {
	// Arrange: registry base with two units; one sale reports a unit lot,
	// one reports the parent lot.
	registry := new(MockRegistryRepository)
	registry.On("ListAll", mock.Anything).Return([]models.RegistryRow{
		{UnitBBL: "1012347501", BaseBBL: "1012340001"},
		{UnitBBL: "1012347502", BaseBBL: "1012340001"},
	}, nil)

	unitSale := &models.RawSale{ID: 1, Borough: strPtr("1"), Block: strPtr("01234"), Lot: strPtr("7501")}
	parentSale := &models.RawSale{ID: 2, Borough: strPtr("1"), Block: strPtr("01234"), Lot: strPtr("0001")}

	sales := new(MockSaleRepository)
	sales.On("ListAll", mock.Anything).Return([]*models.RawSale{unitSale, parentSale}, nil)
	sales.On("UpdateResolutions", mock.Anything, mock.Anything).Return(nil)

	parcels := new(MockParcelRepository)
	p := newTestPipeline(parcels, registry, sales, new(MockUnitRepository), new(MockPropertyRepository), nil)

	// Act
	summary, err := p.MatchSales(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.UnitMatches)
	assert.Equal(t, 1, summary.BlockLotMatches)
	assert.Equal(t, 0, summary.Unresolved)

	assert.Equal(t, models.MatchUnitIdentifier, unitSale.MatchMethod)
	require.NotNil(t, unitSale.UnitBBL)
	assert.Equal(t, "1012347501", *unitSale.UnitBBL)
	require.NotNil(t, unitSale.BaseBBL)
	assert.Equal(t, "1012340001", *unitSale.BaseBBL)

	assert.Equal(t, models.MatchBlockLot, parentSale.MatchMethod)
	assert.Nil(t, parentSale.UnitBBL)
	require.NotNil(t, parentSale.BaseBBL)
	assert.Equal(t, "1012340001", *parentSale.BaseBBL)
}

func TestMatchSales_RegistryLoadFailureIsFatal(t *testing.T) {
	registry := new(MockRegistryRepository)
	registry.On("ListAll", mock.Anything).Return(nil, errors.New("connection refused"))

	p := newTestPipeline(new(MockParcelRepository), registry, new(MockSaleRepository), new(MockUnitRepository), new(MockPropertyRepository), nil)

	_, err := p.MatchSales(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "condo registry")
}

func TestPopulateUnits_LoadsBothTables(t *testing.T) {
	registry := new(MockRegistryRepository)
	registry.On("ListAll", mock.Anything).Return([]models.RegistryRow{
		{UnitBBL: "1012347501", BaseBBL: "1012340001"},
	}, nil)

	parcels := new(MockParcelRepository)
	addr := "100 Main St"
	parcels.On("ListAll", mock.Anything).Return([]models.Parcel{
		{ID: uuid.New(), BBL: "1012340001", Address: &addr},
	}, nil)

	unitRepo := new(MockUnitRepository)
	unitRepo.On("Refresh", mock.Anything, mock.Anything).Return(nil)

	p := newTestPipeline(parcels, registry, new(MockSaleRepository), unitRepo, new(MockPropertyRepository), nil)

	report, err := p.PopulateUnits(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.UnitsBuilt)
	unitRepo.AssertExpectations(t)
}

func TestScoreProperties_WriteErrorsDoNotAbort(t *testing.T) {
	// Arrange: two properties in one ZIP; every comp write fails.
	props := []models.Property{
		{ID: uuid.New(), Zip: "10012", LastSalePrice: floatPtr(900_000), EstimatedValue: floatPtr(1_000_000), Sqft: intPtr(900), PricePerSqft: floatPtr(1000)},
		{ID: uuid.New(), Zip: "10012", LastSalePrice: floatPtr(800_000), EstimatedValue: floatPtr(850_000), Sqft: intPtr(850), PricePerSqft: floatPtr(950)},
	}

	properties := new(MockPropertyRepository)
	properties.On("ListScorable", mock.Anything).Return(props, nil)
	properties.On("ReplaceComps", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))
	properties.On("UpdateScore", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	p := newTestPipeline(new(MockParcelRepository), new(MockRegistryRepository), new(MockSaleRepository), new(MockUnitRepository), properties, nil)

	// Act
	summary, err := p.ScoreProperties(context.Background())

	// Assert: stage completes, failures are counted.
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Properties)
	assert.Equal(t, 2, summary.WriteErrors)
	assert.Equal(t, 0, summary.CompsWritten)
	properties.AssertNumberOfCalls(t, "UpdateScore", 2)
}

func TestEnrichUnits_AppliesConfidentResults(t *testing.T) {
	unitRepo := new(MockUnitRepository)
	unitRepo.On("ListMissingCoordinates", mock.Anything).Return([]models.CondoUnit{
		{UnitBBL: "1012347501", Borough: "1", DisplayAddress: strPtr("100 Main St, Unit 5A")},
	}, nil)
	unitRepo.On("UpdateLocation", mock.Anything, "1012347501", mock.Anything).Return(nil)

	p := newTestPipeline(new(MockParcelRepository), new(MockRegistryRepository), new(MockSaleRepository), unitRepo, new(MockPropertyRepository), &fakeGeocoder{})

	summary, err := p.EnrichUnits(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Applied)
	unitRepo.AssertExpectations(t)
}

func TestEnrichUnits_FailedWriteCountsAsFailed(t *testing.T) {
	// Arrange: two units geocode fine but only the first write lands.
	unitRepo := new(MockUnitRepository)
	unitRepo.On("ListMissingCoordinates", mock.Anything).Return([]models.CondoUnit{
		{UnitBBL: "1012347501", Borough: "1", DisplayAddress: strPtr("100 Main St, Unit 5A")},
		{UnitBBL: "1012347502", Borough: "1", DisplayAddress: strPtr("100 Main St, Unit 5B")},
	}, nil)
	unitRepo.On("UpdateLocation", mock.Anything, "1012347501", mock.Anything).Return(nil)
	unitRepo.On("UpdateLocation", mock.Anything, "1012347502", mock.Anything).Return(errors.New("deadlock detected"))

	p := newTestPipeline(new(MockParcelRepository), new(MockRegistryRepository), new(MockSaleRepository), unitRepo, new(MockPropertyRepository), &fakeGeocoder{})

	// Act
	summary, err := p.EnrichUnits(context.Background())

	// Assert: only the persisted result counts as applied.
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, 1, summary.Failed)
	unitRepo.AssertExpectations(t)
}

func TestEnrichUnits_NoGeocoderConfigured(t *testing.T) {
	p := newTestPipeline(new(MockParcelRepository), new(MockRegistryRepository), new(MockSaleRepository), new(MockUnitRepository), new(MockPropertyRepository), nil)

	_, err := p.EnrichUnits(context.Background())

	assert.Error(t, err)
}

func TestRun_SkipsEnrichmentWithoutGeocoder(t *testing.T) {
	registry := new(MockRegistryRepository)
	registry.On("ListAll", mock.Anything).Return([]models.RegistryRow{}, nil)

	sales := new(MockSaleRepository)
	sales.On("ListAll", mock.Anything).Return([]*models.RawSale{}, nil)

	parcels := new(MockParcelRepository)
	parcels.On("ListAll", mock.Anything).Return([]models.Parcel{}, nil)

	unitRepo := new(MockUnitRepository)
	unitRepo.On("Refresh", mock.Anything, mock.Anything).Return(nil)

	properties := new(MockPropertyRepository)
	properties.On("ListScorable", mock.Anything).Return([]models.Property{}, nil)

	p := newTestPipeline(parcels, registry, sales, unitRepo, properties, nil)

	summary, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, summary.Match)
	assert.NotNil(t, summary.Units)
	assert.NotNil(t, summary.Scoring)
	assert.Nil(t, summary.Geocode)
}
