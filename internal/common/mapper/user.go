package mapper

import (
	"github.com/AlibekovAA/social-auth/internal/common/dto"
	userdomain "github.com/AlibekovAA/social-auth/internal/user/domain"
)

func UserToDTO(user userdomain.User) dto.User {
	return dto.User{
		ID:           string(user.ID),
		Email:        user.Email,
		Username:     user.Username,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		DisplayName:  user.DisplayName,
		Bio:          user.Bio,
		ProfileImage: user.ProfileImage,
		CoverImage:   user.CoverImage,
		Website:      user.Website,
		Location:     user.Location,
		BirthDate:    user.BirthDate,
		IsVerified:   user.IsVerified,
		IsPrivate:    user.IsPrivate,
		IsActive:     user.IsActive,
		LastActiveAt: user.LastActiveAt,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}
