//go:build integration

package subject_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"geoattend/internal/attendance"
	"geoattend/internal/store"
	"geoattend/internal/subject"
	"geoattend/internal/testutil/containers"
)

type RepositorySuite struct {
	suite.Suite
	pg      *containers.PostgresContainer
	repo    *subject.Repository
	records *attendance.Repository
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.repo = subject.NewRepository(s.pg.DB.Client)
	s.records = attendance.NewRepository(s.pg.DB.Client)
}

func (s *RepositorySuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background()))
}

func (s *RepositorySuite) TestCRUD() {
	ctx := context.Background()
	created, err := s.repo.Create(ctx, subject.Subject{
		Username: "arun", PasswordHash: "h", Role: subject.RoleStudent, FullName: "Arun",
		AssignedShift: subject.ShiftMorning, FeeStatus: subject.DefaultFeeStatus, RecordStatus: subject.DefaultRecordStatus,
	})
	s.Require().NoError(err)

	_, err = s.repo.Create(ctx, subject.Subject{Username: "arun", PasswordHash: "h", Role: subject.RoleStudent, FullName: "Dup"})
	s.ErrorIs(err, store.ErrConflict)

	byName, err := s.repo.GetByUsername(ctx, "arun")
	s.Require().NoError(err)
	s.Equal(created.ID, byName.ID)

	byName.PaidFees = 250
	updated, err := s.repo.Update(ctx, byName)
	s.Require().NoError(err)
	s.Equal(250.0, updated.PaidFees)

	list, err := s.repo.ListByRole(ctx, subject.RoleStudent)
	s.Require().NoError(err)
	s.Len(list, 1)

	_, err = s.repo.Get(ctx, "missing")
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *RepositorySuite) TestDeleteCascades() {
	ctx := context.Background()
	svc := subject.NewService(s.repo, s.records, subject.WithHashCost(bcrypt.MinCost))
	sub, err := svc.Register(ctx, subject.NewStudent{Username: "arun", Password: "x", FullName: "Arun"})
	s.Require().NoError(err)
	_, err = s.records.Create(ctx, attendance.Record{SubjectID: sub.ID, Date: "2026-10-17"})
	s.Require().NoError(err)

	s.Require().NoError(svc.Delete(ctx, sub.ID))

	rec, err := s.records.Find(ctx, sub.ID, "2026-10-17")
	s.Require().NoError(err)
	s.Nil(rec)
}
