package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omeasupport/dispatch-service/internal/auth"
	"github.com/omeasupport/dispatch-service/internal/errs"
	"github.com/omeasupport/dispatch-service/internal/middleware"
	"github.com/omeasupport/dispatch-service/internal/model"
	"github.com/omeasupport/dispatch-service/internal/service"
	"github.com/omeasupport/dispatch-service/internal/storage"
)

type AuthHandler struct {
	users  *service.UserService
	jwt    *auth.JWTManager
	photos *storage.PhotoStore
}

func NewAuthHandler(users *service.UserService, jwt *auth.JWTManager, photos *storage.PhotoStore) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt, photos: photos}
}

type registerRequest struct {
	Nom                  string `form:"nom" json:"nom"`
	Prenom               string `form:"prenom" json:"prenom"`
	Email                string `form:"email" json:"email"`
	Password             string `form:"password" json:"password"`
	PasswordConfirmation string `form:"password_confirmation" json:"password_confirmation"`
	Telephone            string `form:"telephone" json:"telephone"`
	Pays                 string `form:"pays" json:"pays"`
	Ville                string `form:"ville" json:"ville"`
	Role                 string `form:"role" json:"role"`
}

// Register creates a user account. Accepts JSON, or multipart form data
// when a profile photo is attached.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, errs.Validation("corps de requête invalide"))
		return
	}
	if req.PasswordConfirmation != "" && req.PasswordConfirmation != req.Password {
		fail(c, errs.Validation("les mots de passe ne correspondent pas"))
		return
	}

	photoRef := ""
	if fh, err := c.FormFile("photo_profile"); err == nil && fh != nil {
		ref, err := h.photos.SaveProfilePhoto(c, fh)
		if err != nil {
			fail(c, errs.Validation("photo de profil invalide"))
			return
		}
		photoRef = ref
	}

	user, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		LastName:     req.Nom,
		FirstName:    req.Prenom,
		Email:        req.Email,
		Password:     req.Password,
		Phone:        req.Telephone,
		Country:      req.Pays,
		City:         req.Ville,
		Role:         model.Role(req.Role),
		ProfilePhoto: photoRef,
	})
	if err != nil {
		fail(c, err)
		return
	}

	token, err := h.jwt.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		fail(c, errs.Internal("génération du jeton impossible", err))
		return
	}
	respond(c, http.StatusCreated, "utilisateur créé avec succès", gin.H{
		"token":      token,
		"token_type": "Bearer",
		"role":       user.Role,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.Validation("email et mot de passe sont requis"))
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errs.KindOf(err) == errs.KindForbidden {
			c.JSON(http.StatusUnauthorized, gin.H{"status": false, "message": errs.MessageOf(err)})
			return
		}
		fail(c, err)
		return
	}

	token, err := h.jwt.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		fail(c, errs.Internal("génération du jeton impossible", err))
		return
	}
	respond(c, http.StatusOK, "utilisateur connecté avec succès", gin.H{
		"token":      token,
		"token_type": "Bearer",
		"role":       user.Role,
	})
}

func (h *AuthHandler) Profile(c *gin.Context) {
	claims := middleware.Claims(c)
	user, err := h.users.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "profil utilisateur", profileView(user))
}

type updateProfileRequest struct {
	Nom       *string `form:"nom" json:"nom"`
	Prenom    *string `form:"prenom" json:"prenom"`
	Email     *string `form:"email" json:"email"`
	Telephone *string `form:"telephone" json:"telephone"`
	Pays      *string `form:"pays" json:"pays"`
	Ville     *string `form:"ville" json:"ville"`
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	claims := middleware.Claims(c)
	var req updateProfileRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, errs.Validation("corps de requête invalide"))
		return
	}

	in := service.UpdateProfileInput{
		LastName:  req.Nom,
		FirstName: req.Prenom,
		Email:     req.Email,
		Phone:     req.Telephone,
		Country:   req.Pays,
		City:      req.Ville,
	}

	var oldPhoto string
	if fh, err := c.FormFile("photo_profile"); err == nil && fh != nil {
		if current, gerr := h.users.Get(c.Request.Context(), claims.UserID); gerr == nil {
			oldPhoto = current.ProfilePhoto
		}
		ref, err := h.photos.SaveProfilePhoto(c, fh)
		if err != nil {
			fail(c, errs.Validation("photo de profil invalide"))
			return
		}
		in.ProfilePhoto = &ref
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), claims.UserID, in)
	if err != nil {
		fail(c, err)
		return
	}
	if in.ProfilePhoto != nil && oldPhoto != "" {
		_ = h.photos.Remove(oldPhoto)
	}
	respond(c, http.StatusOK, "profil mis à jour", profileView(user))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims := middleware.Claims(c)
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.Validation("mot de passe actuel et nouveau mot de passe sont requis"))
		return
	}
	if err := h.users.ChangePassword(c.Request.Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "mot de passe modifié", nil)
}

// profileView decorates the user with the public photo URL the mobile
// client loads directly.
func profileView(u *model.User) gin.H {
	var photoURL interface{}
	if u.ProfilePhoto != "" {
		photoURL = "/uploads/" + u.ProfilePhoto
	}
	return gin.H{
		"user":              u,
		"photo_profile_url": photoURL,
	}
}
