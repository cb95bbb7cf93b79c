package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/omeasupport/dispatch-service/internal/auth"
	"github.com/omeasupport/dispatch-service/internal/errs"
	"github.com/omeasupport/dispatch-service/internal/model"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

type RegisterInput struct {
	LastName     string
	FirstName    string
	Email        string
	Password     string
	Phone        string
	Country      string
	City         string
	Role         model.Role
	ProfilePhoto string
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	switch {
	case in.LastName == "" || in.FirstName == "":
		return nil, errs.Validation("nom et prenom sont requis")
	case in.Email == "" || in.Password == "":
		return nil, errs.Validation("email et mot de passe sont requis")
	case in.Phone == "":
		return nil, errs.Validation("telephone est requis")
	case in.Role != model.RoleClient && in.Role != model.RoleTechnician:
		return nil, errs.Validation("role doit être client ou technician")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, errs.Internal("hachage du mot de passe impossible", err)
	}
	user := &model.User{
		LastName:     in.LastName,
		FirstName:    in.FirstName,
		Email:        in.Email,
		PasswordHash: hash,
		Phone:        in.Phone,
		Country:      in.Country,
		City:         in.City,
		Role:         in.Role,
		ProfilePhoto: in.ProfilePhoto,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errs.Validation("email ou telephone déjà utilisé")
		}
		return nil, errs.Internal("création de l'utilisateur impossible", err)
	}
	return user, nil
}

// Authenticate verifies credentials and returns the user. Wrong email and
// wrong password are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	if email == "" || password == "" {
		return nil, errs.Validation("email et mot de passe sont requis")
	}
	var user model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Forbidden("email ou mot de passe incorrect")
		}
		return nil, errs.Internal("lecture de l'utilisateur impossible", err)
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, errs.Forbidden("email ou mot de passe incorrect")
	}
	return &user, nil
}

func (s *UserService) Get(ctx context.Context, id uint64) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("utilisateur introuvable")
		}
		return nil, errs.Internal("lecture de l'utilisateur impossible", err)
	}
	return &user, nil
}

type UpdateProfileInput struct {
	LastName     *string
	FirstName    *string
	Email        *string
	Phone        *string
	Country      *string
	City         *string
	ProfilePhoto *string
}

func (s *UserService) UpdateProfile(ctx context.Context, id uint64, in UpdateProfileInput) (*model.User, error) {
	changes := make(map[string]interface{})
	if in.LastName != nil {
		changes["nom"] = *in.LastName
	}
	if in.FirstName != nil {
		changes["prenom"] = *in.FirstName
	}
	if in.Email != nil {
		changes["email"] = *in.Email
	}
	if in.Phone != nil {
		changes["telephone"] = *in.Phone
	}
	if in.Country != nil {
		changes["pays"] = *in.Country
	}
	if in.City != nil {
		changes["ville"] = *in.City
	}
	if in.ProfilePhoto != nil {
		changes["photo_profile"] = *in.ProfilePhoto
	}
	if len(changes) == 0 {
		return nil, errs.Validation("aucune modification fournie")
	}

	var user model.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("utilisateur introuvable")
			}
			return errs.Internal("lecture de l'utilisateur impossible", err)
		}
		if err := tx.Model(&user).Updates(changes).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errs.Validation("email ou telephone déjà utilisé")
			}
			return errs.Internal("mise à jour du profil impossible", err)
		}
		return tx.First(&user, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, id uint64, current, next string) error {
	if current == "" || next == "" {
		return errs.Validation("mot de passe actuel et nouveau mot de passe sont requis")
	}
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFound("utilisateur introuvable")
		}
		return errs.Internal("lecture de l'utilisateur impossible", err)
	}
	if !auth.VerifyPassword(current, user.PasswordHash) {
		return errs.Forbidden("mot de passe actuel incorrect")
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return errs.Internal("hachage du mot de passe impossible", err)
	}
	if err := s.db.WithContext(ctx).Model(&user).Update("password", hash).Error; err != nil {
		return errs.Internal("mise à jour du mot de passe impossible", err)
	}
	return nil
}
