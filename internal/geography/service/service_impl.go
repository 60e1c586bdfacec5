package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrutinio/internal/clock"
	"github.com/smallbiznis/escrutinio/internal/geography/domain"
	mesadomain "github.com/smallbiznis/escrutinio/internal/mesa/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	MesaRepo mesadomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	mesaRepo mesadomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("geography.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		mesaRepo: p.MesaRepo,
	}
}

func (s *Service) EnsureSection(ctx context.Context, req domain.EnsureSectionRequest) (domain.Section, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Section{}, domain.ErrInvalidName
	}
	if req.Number != nil && *req.Number <= 0 {
		return domain.Section{}, domain.ErrInvalidNumber
	}

	existing, err := s.repo.FindSectionByIdentity(ctx, s.db, req.Number, name)
	if err != nil {
		return domain.Section{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	section := domain.Section{
		ID:     s.genID.Generate(),
		Number: req.Number,
		Name:   name,
	}
	if err := s.repo.InsertSection(ctx, s.db, &section); err != nil {
		return domain.Section{}, fmt.Errorf("insert section: %w", err)
	}

	// a concurrent import may have won the insert
	stored, err := s.repo.FindSectionByIdentity(ctx, s.db, req.Number, name)
	if err != nil {
		return domain.Section{}, err
	}
	if stored == nil {
		return domain.Section{}, domain.ErrSectionNotFound
	}
	return *stored, nil
}

func (s *Service) EnsureCircuit(ctx context.Context, req domain.EnsureCircuitRequest) (domain.Circuit, error) {
	if req.SectionID == 0 {
		return domain.Circuit{}, domain.ErrInvalidID
	}
	number := strings.TrimSpace(req.Number)
	if number == "" {
		return domain.Circuit{}, domain.ErrInvalidNumber
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Circuit{}, domain.ErrInvalidName
	}

	section, err := s.repo.FindSection(ctx, s.db, req.SectionID)
	if err != nil {
		return domain.Circuit{}, err
	}
	if section == nil {
		return domain.Circuit{}, domain.ErrSectionNotFound
	}

	existing, err := s.repo.FindCircuitByIdentity(ctx, s.db, req.SectionID, number, name)
	if err != nil {
		return domain.Circuit{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	circuit := domain.Circuit{
		ID:        s.genID.Generate(),
		SectionID: req.SectionID,
		Number:    number,
		Name:      name,
		HeadTown:  trimmedOrNil(req.HeadTown),
	}
	if err := s.repo.InsertCircuit(ctx, s.db, &circuit); err != nil {
		return domain.Circuit{}, fmt.Errorf("insert circuit: %w", err)
	}

	stored, err := s.repo.FindCircuitByIdentity(ctx, s.db, req.SectionID, number, name)
	if err != nil {
		return domain.Circuit{}, err
	}
	if stored == nil {
		return domain.Circuit{}, domain.ErrCircuitNotFound
	}
	return *stored, nil
}

func (s *Service) EnsureVotingPlace(ctx context.Context, req domain.EnsureVotingPlaceRequest) (domain.VotingPlace, error) {
	if req.CircuitID == 0 {
		return domain.VotingPlace{}, domain.ErrInvalidID
	}
	identity := domain.VotingPlace{
		CircuitID:    req.CircuitID,
		Name:         strings.TrimSpace(req.Name),
		Address:      strings.TrimSpace(req.Address),
		Neighborhood: strings.TrimSpace(req.Neighborhood),
		City:         strings.TrimSpace(req.City),
	}
	if identity.Name == "" {
		return domain.VotingPlace{}, domain.ErrInvalidName
	}

	circuit, err := s.repo.FindCircuit(ctx, s.db, req.CircuitID)
	if err != nil {
		return domain.VotingPlace{}, err
	}
	if circuit == nil {
		return domain.VotingPlace{}, domain.ErrCircuitNotFound
	}

	existing, err := s.repo.FindVotingPlaceByIdentity(ctx, s.db, identity)
	if err != nil {
		return domain.VotingPlace{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	place := identity
	place.ID = s.genID.Generate()
	if err := s.repo.InsertVotingPlace(ctx, s.db, &place); err != nil {
		return domain.VotingPlace{}, fmt.Errorf("insert voting place: %w", err)
	}

	stored, err := s.repo.FindVotingPlaceByIdentity(ctx, s.db, identity)
	if err != nil {
		return domain.VotingPlace{}, err
	}
	if stored == nil {
		return domain.VotingPlace{}, domain.ErrVotingPlaceNotFound
	}
	return *stored, nil
}

func (s *Service) LocateVotingPlace(ctx context.Context, placeID snowflake.ID, req domain.LocateVotingPlaceRequest) (domain.VotingPlace, error) {
	if placeID == 0 {
		return domain.VotingPlace{}, domain.ErrInvalidID
	}
	if req.Electors != nil && *req.Electors < 0 {
		return domain.VotingPlace{}, domain.ErrInvalidNumber
	}
	if req.Point != nil && !validPoint(*req.Point) {
		return domain.VotingPlace{}, domain.ErrInvalidPoint
	}

	place, err := s.repo.FindVotingPlace(ctx, s.db, placeID)
	if err != nil {
		return domain.VotingPlace{}, err
	}
	if place == nil {
		return domain.VotingPlace{}, domain.ErrVotingPlaceNotFound
	}

	place.ElectorCount = req.Electors
	place.GeoQuality = strings.TrimSpace(req.Quality)
	if req.Point == nil {
		place.Latitude, place.Longitude = nil, nil
		place.GeoConfidence = domain.MinGeoConfidence
	} else {
		lat, lng := req.Point.Latitude, req.Point.Longitude
		place.Latitude, place.Longitude = &lat, &lng
		place.GeoConfidence = clampConfidence(req.Confidence)
	}

	if err := s.repo.UpdateVotingPlace(ctx, s.db, place); err != nil {
		return domain.VotingPlace{}, fmt.Errorf("update voting place: %w", err)
	}
	return *place, nil
}

func (s *Service) SetWeightedProjection(ctx context.Context, sectionNumber int) (int64, error) {
	if sectionNumber <= 0 {
		return 0, domain.ErrInvalidNumber
	}
	updated, err := s.repo.SetWeightedProjection(ctx, s.db, sectionNumber)
	if err != nil {
		return 0, fmt.Errorf("set weighted projection: %w", err)
	}
	if updated > 0 {
		s.log.Info("section projected by circuit",
			zap.Int("section_number", sectionNumber),
			zap.Int64("sections", updated),
		)
	}
	return updated, nil
}

func (s *Service) GetSection(ctx context.Context, id snowflake.ID) (domain.Section, error) {
	if id == 0 {
		return domain.Section{}, domain.ErrInvalidID
	}
	section, err := s.repo.FindSection(ctx, s.db, id)
	if err != nil {
		return domain.Section{}, err
	}
	if section == nil {
		return domain.Section{}, domain.ErrSectionNotFound
	}
	return *section, nil
}

func (s *Service) GetCircuit(ctx context.Context, id snowflake.ID) (domain.Circuit, error) {
	if id == 0 {
		return domain.Circuit{}, domain.ErrInvalidID
	}
	circuit, err := s.repo.FindCircuit(ctx, s.db, id)
	if err != nil {
		return domain.Circuit{}, err
	}
	if circuit == nil {
		return domain.Circuit{}, domain.ErrCircuitNotFound
	}
	return *circuit, nil
}

func (s *Service) GetVotingPlace(ctx context.Context, id snowflake.ID) (domain.VotingPlace, error) {
	if id == 0 {
		return domain.VotingPlace{}, domain.ErrInvalidID
	}
	place, err := s.repo.FindVotingPlace(ctx, s.db, id)
	if err != nil {
		return domain.VotingPlace{}, err
	}
	if place == nil {
		return domain.VotingPlace{}, domain.ErrVotingPlaceNotFound
	}
	return *place, nil
}

func (s *Service) CircuitsOf(ctx context.Context, sectionID snowflake.ID) ([]domain.Circuit, error) {
	if _, err := s.GetSection(ctx, sectionID); err != nil {
		return nil, err
	}
	return s.repo.ListCircuits(ctx, s.db, sectionID)
}

func (s *Service) VotingPlacesOf(ctx context.Context, circuitID snowflake.ID) ([]domain.VotingPlace, error) {
	if _, err := s.GetCircuit(ctx, circuitID); err != nil {
		return nil, err
	}
	return s.repo.ListVotingPlaces(ctx, s.db, circuitID)
}

func (s *Service) MesasOf(ctx context.Context, placeID, electionID snowflake.ID) ([]mesadomain.Mesa, error) {
	if electionID == 0 {
		return nil, domain.ErrInvalidID
	}
	if _, err := s.GetVotingPlace(ctx, placeID); err != nil {
		return nil, err
	}
	return s.repo.MesasOfPlace(ctx, s.db, placeID, electionID)
}

func (s *Service) SectionMesas(ctx context.Context, sectionID, electionID snowflake.ID) ([]mesadomain.Mesa, error) {
	if electionID == 0 {
		return nil, domain.ErrInvalidID
	}
	if _, err := s.GetSection(ctx, sectionID); err != nil {
		return nil, err
	}
	return s.repo.MesasOfSection(ctx, s.db, sectionID, electionID)
}

func (s *Service) CircuitMesas(ctx context.Context, circuitID, electionID snowflake.ID) ([]mesadomain.Mesa, error) {
	if electionID == 0 {
		return nil, domain.ErrInvalidID
	}
	if _, err := s.GetCircuit(ctx, circuitID); err != nil {
		return nil, err
	}
	return s.repo.MesasOfCircuit(ctx, s.db, circuitID, electionID)
}

func (s *Service) NextLoadOrder(ctx context.Context, circuitID snowflake.ID) (int, error) {
	if _, err := s.GetCircuit(ctx, circuitID); err != nil {
		return 0, err
	}
	highest, err := s.repo.MaxLoadOrder(ctx, s.db, circuitID, 0)
	if err != nil {
		return 0, fmt.Errorf("max load order: %w", err)
	}
	return highest + 1, nil
}

func (s *Service) AssignLoadOrder(ctx context.Context, mesaID snowflake.ID) (mesadomain.Mesa, error) {
	if mesaID == 0 {
		return mesadomain.Mesa{}, domain.ErrInvalidID
	}

	var assigned mesadomain.Mesa
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mesa, err := s.mesaRepo.LockByID(ctx, tx, mesaID)
		if err != nil {
			return err
		}
		if mesa == nil {
			return mesadomain.ErrNotFound
		}
		assigned = *mesa
		if mesa.LoadOrder >= 1 {
			return nil
		}
		if mesa.VotingPlaceID == nil {
			return domain.ErrMesaWithoutGeography
		}
		place, err := s.repo.FindVotingPlace(ctx, tx, *mesa.VotingPlaceID)
		if err != nil {
			return err
		}
		if place == nil {
			return domain.ErrMesaWithoutGeography
		}

		highest, err := s.repo.MaxLoadOrder(ctx, tx, place.CircuitID, mesaID)
		if err != nil {
			return fmt.Errorf("max load order: %w", err)
		}
		now := s.clock.Now()
		if err := s.mesaRepo.SetLoadOrder(ctx, tx, mesaID, highest+1, now); err != nil {
			return fmt.Errorf("set load order: %w", err)
		}
		assigned.LoadOrder = highest + 1
		assigned.UpdatedAt = now
		return nil
	})
	if err != nil {
		return mesadomain.Mesa{}, err
	}
	return assigned, nil
}

func (s *Service) MesaRange(ctx context.Context, placeID snowflake.ID) (string, error) {
	if _, err := s.GetVotingPlace(ctx, placeID); err != nil {
		return "", err
	}
	first, last, err := s.repo.MesaNumberRange(ctx, s.db, placeID)
	if err != nil {
		return "", fmt.Errorf("mesa range: %w", err)
	}
	if first == nil || last == nil {
		return "", nil
	}
	if *first == *last {
		return strconv.Itoa(*first), nil
	}
	return fmt.Sprintf("%d - %d", *first, *last), nil
}

func (s *Service) PlaceColor(ctx context.Context, placeID snowflake.ID) (string, error) {
	if _, err := s.GetVotingPlace(ctx, placeID); err != nil {
		return "", err
	}
	reported, err := s.repo.PlaceHasReports(ctx, s.db, placeID)
	if err != nil {
		return "", fmt.Errorf("place reports: %w", err)
	}
	if reported {
		return domain.PlaceColorReported, nil
	}
	return domain.PlaceColorPending, nil
}

func (s *Service) ProjectionGroup(ctx context.Context, mesaID snowflake.ID) (domain.ProjectionGroup, error) {
	if mesaID == 0 {
		return domain.ProjectionGroup{}, domain.ErrInvalidID
	}
	mesa, err := s.mesaRepo.FindByID(ctx, s.db, mesaID)
	if err != nil {
		return domain.ProjectionGroup{}, err
	}
	if mesa == nil {
		return domain.ProjectionGroup{}, mesadomain.ErrNotFound
	}
	if mesa.VotingPlaceID == nil {
		return domain.ProjectionGroup{}, domain.ErrMesaWithoutGeography
	}

	place, err := s.repo.FindVotingPlace(ctx, s.db, *mesa.VotingPlaceID)
	if err != nil {
		return domain.ProjectionGroup{}, err
	}
	if place == nil {
		return domain.ProjectionGroup{}, domain.ErrMesaWithoutGeography
	}
	circuit, err := s.GetCircuit(ctx, place.CircuitID)
	if err != nil {
		return domain.ProjectionGroup{}, err
	}
	section, err := s.GetSection(ctx, circuit.SectionID)
	if err != nil {
		return domain.ProjectionGroup{}, err
	}

	if section.WeightedProjection {
		return domain.ProjectionGroup{Kind: domain.ProjectionByCircuit, ID: circuit.ID, Name: circuit.Name}, nil
	}
	return domain.ProjectionGroup{Kind: domain.ProjectionBySection, ID: section.ID, Name: section.Name}, nil
}

func validPoint(p domain.GeoPoint) bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

func clampConfidence(confidence int) int {
	if confidence < domain.MinGeoConfidence {
		return domain.MinGeoConfidence
	}
	if confidence > domain.MaxGeoConfidence {
		return domain.MaxGeoConfidence
	}
	return confidence
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
