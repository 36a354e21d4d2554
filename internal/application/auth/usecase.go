// Package auth implementa registro y login de operadores con bcrypt y JWT.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/emisordte/emisor-dte/internal/domain"
	"github.com/emisordte/emisor-dte/internal/domain/entity"
	"github.com/emisordte/emisor-dte/internal/domain/repository"
	"github.com/emisordte/emisor-dte/pkg/config"
	"github.com/emisordte/emisor-dte/pkg/jwt"
	"github.com/emisordte/emisor-dte/pkg/logger"
)

// UseCase gestiona la autenticación de operadores.
type UseCase struct {
	usuarios repository.UsuarioRepository
	cfg      config.JWTConfig
	log      *logger.Logger
}

// NewUseCase construye el caso de uso.
func NewUseCase(usuarios repository.UsuarioRepository, cfg config.JWTConfig, log *logger.Logger) *UseCase {
	return &UseCase{usuarios: usuarios, cfg: cfg, log: log}
}

// Register crea un operador nuevo. El primer rol lo decide el caller (el
// handler solo permite crear admins a otro admin).
func (uc *UseCase) Register(ctx context.Context, email, password, nombre, rol string) (*entity.Usuario, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email inválido", domain.ErrInvalidInput)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: la contraseña requiere al menos 8 caracteres", domain.ErrInvalidInput)
	}
	if rol != entity.RolAdmin && rol != entity.RolOperador {
		return nil, fmt.Errorf("%w: rol %q desconocido", domain.ErrInvalidInput, rol)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashear contraseña: %w", err)
	}

	ahora := time.Now()
	usuario := &entity.Usuario{
		ID:            uuid.NewString(),
		Email:         email,
		PasswordHash:  string(hash),
		Nombre:        nombre,
		Rol:           rol,
		Estado:        "active",
		CreadoEn:      ahora,
		ActualizadoEn: ahora,
	}
	if err := uc.usuarios.Create(ctx, usuario); err != nil {
		return nil, err
	}
	uc.log.Info().Str("email", email).Str("rol", rol).Msg("operador registrado")
	return usuario, nil
}

// Login valida las credenciales y devuelve un JWT firmado.
func (uc *UseCase) Login(ctx context.Context, email, password string) (string, *entity.Usuario, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	usuario, err := uc.usuarios.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("buscar usuario: %w", err)
	}
	if usuario == nil {
		return "", nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(usuario.PasswordHash), []byte(password)); err != nil {
		return "", nil, domain.ErrUnauthorized
	}

	token, err := jwt.Generate(uc.cfg.Secret, usuario.ID, usuario.Rol, uc.cfg.Issuer, uc.cfg.Expiration)
	if err != nil {
		return "", nil, fmt.Errorf("firmar token: %w", err)
	}
	return token, usuario, nil
}
