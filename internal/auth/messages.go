package auth

import "errors"

// User-facing errors. The login form shows these verbatim; nothing else
// from this package (backend text, subject ids, strategy names) may reach
// the UI.
var (
	ErrMissingFields      = errors.New("Email e senha são obrigatórios")
	ErrInvalidEmail       = errors.New("Email deve ter formato válido")
	ErrShortPassword      = errors.New("Senha deve ter pelo menos 3 caracteres")
	ErrInvalidLogin       = errors.New("Email ou senha incorretos")
	ErrEmailNotConfirmed  = errors.New("Email não confirmado. Verifique sua caixa de entrada.")
	ErrTooManyRequests    = errors.New("Muitas tentativas. Aguarde alguns minutos.")
	ErrProfileUnavailable = errors.New("Perfil do usuário ainda não disponível. Tente novamente em instantes.")
	ErrInternal           = errors.New("Erro interno do sistema")

	// Provisioning flow.
	ErrProvisionMissing  = errors.New("Todos os campos são obrigatórios")
	ErrProvisionPassword = errors.New("Senha deve ter pelo menos 6 caracteres")
	ErrProvisionFailed   = errors.New("Não foi possível criar o administrador")
	ErrUserExists        = errors.New("Usuário já cadastrado")
	ErrResetFailed       = errors.New("Não foi possível enviar o email de recuperação")
)
