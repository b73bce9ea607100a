// Package i18n resolves locales against the supported set and translates the
// user-facing messages produced by the gate and the pages.
package i18n

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	KeyLoginRequired          = "notice_login_required"
	KeyAdminAccessRequired    = "error_admin_access_required"
	KeyWarningYourEmail       = "notice_warning_your_email_address"
	KeyChangeItHere           = "notice_change_it_here"
	KeyLoggedIn               = "notice_logged_in"
	KeyLoggedOut              = "notice_logged_out"
	KeyInvalidLogin           = "error_invalid_login"
	KeyWelcome                = "page_welcome"
	KeyWelcomeAnonymous       = "page_welcome_anonymous"
	KeyAdminDashboard         = "page_admin_dashboard"
	KeyEditProfile            = "page_edit_profile"
	KeyForbiddenProfileAccess = "error_profile_access_denied"
	KeyLoginPage              = "page_login"
	KeyEmailTaken             = "error_email_taken"
	KeyProfileUpdated         = "notice_profile_updated"
	KeyInvalidLanguage        = "error_invalid_language"
	KeyTooManyAttempts        = "error_too_many_login_attempts"
)

// messages maps locale -> key -> format string. Format verbs follow fmt.
var messages = map[string]map[string]string{
	"en": {
		KeyLoginRequired:          "You must be logged in to view the page",
		KeyAdminAccessRequired:    "Admin access required",
		KeyWarningYourEmail:       "Warning: your email address is still at %s.",
		KeyChangeItHere:           "Change it here",
		KeyLoggedIn:               "Logged in successfully",
		KeyLoggedOut:              "You have been logged out",
		KeyInvalidLogin:           "Invalid email or password",
		KeyWelcome:                "Welcome back, %s",
		KeyWelcomeAnonymous:       "Welcome",
		KeyAdminDashboard:         "Administration",
		KeyEditProfile:            "Edit profile",
		KeyForbiddenProfileAccess: "You can only edit your own profile",
		KeyLoginPage:              "Log in",
		KeyEmailTaken:             "That email address is already in use",
		KeyProfileUpdated:         "Profile updated",
		KeyInvalidLanguage:        "Unsupported language",
		KeyTooManyAttempts:        "Too many login attempts, try again later",
	},
	"fr": {
		KeyLoginRequired:          "Vous devez être connecté pour voir cette page",
		KeyAdminAccessRequired:    "Accès administrateur requis",
		KeyWarningYourEmail:       "Attention : votre adresse e-mail est toujours chez %s.",
		KeyChangeItHere:           "Modifiez-la ici",
		KeyLoggedIn:               "Connexion réussie",
		KeyLoggedOut:              "Vous êtes déconnecté",
		KeyInvalidLogin:           "E-mail ou mot de passe invalide",
		KeyWelcome:                "Bon retour, %s",
		KeyWelcomeAnonymous:       "Bienvenue",
		KeyAdminDashboard:         "Administration",
		KeyEditProfile:            "Modifier le profil",
		KeyForbiddenProfileAccess: "Vous ne pouvez modifier que votre propre profil",
		KeyLoginPage:              "Connexion",
		KeyEmailTaken:             "Cette adresse e-mail est déjà utilisée",
		KeyProfileUpdated:         "Profil mis à jour",
		KeyInvalidLanguage:        "Langue non prise en charge",
		KeyTooManyAttempts:        "Trop de tentatives de connexion, réessayez plus tard",
	},
	"de": {
		KeyLoginRequired:          "Sie müssen angemeldet sein, um diese Seite zu sehen",
		KeyAdminAccessRequired:    "Administratorzugriff erforderlich",
		KeyWarningYourEmail:       "Achtung: Ihre E-Mail-Adresse liegt noch bei %s.",
		KeyChangeItHere:           "Hier ändern",
		KeyLoggedIn:               "Erfolgreich angemeldet",
		KeyLoggedOut:              "Sie wurden abgemeldet",
		KeyInvalidLogin:           "Ungültige E-Mail oder ungültiges Passwort",
		KeyWelcome:                "Willkommen zurück, %s",
		KeyWelcomeAnonymous:       "Willkommen",
		KeyAdminDashboard:         "Verwaltung",
		KeyEditProfile:            "Profil bearbeiten",
		KeyForbiddenProfileAccess: "Sie können nur Ihr eigenes Profil bearbeiten",
		KeyLoginPage:              "Anmelden",
		KeyEmailTaken:             "Diese E-Mail-Adresse wird bereits verwendet",
		KeyProfileUpdated:         "Profil aktualisiert",
		KeyInvalidLanguage:        "Nicht unterstützte Sprache",
		KeyTooManyAttempts:        "Zu viele Anmeldeversuche, bitte später erneut versuchen",
	},
	"es": {
		KeyLoginRequired:          "Debe iniciar sesión para ver la página",
		KeyAdminAccessRequired:    "Se requiere acceso de administrador",
		KeyWarningYourEmail:       "Aviso: su dirección de correo sigue en %s.",
		KeyChangeItHere:           "Cámbiela aquí",
		KeyLoggedIn:               "Sesión iniciada",
		KeyLoggedOut:              "Ha cerrado la sesión",
		KeyInvalidLogin:           "Correo o contraseña no válidos",
		KeyWelcome:                "Bienvenido de nuevo, %s",
		KeyWelcomeAnonymous:       "Bienvenido",
		KeyAdminDashboard:         "Administración",
		KeyEditProfile:            "Editar perfil",
		KeyForbiddenProfileAccess: "Solo puede editar su propio perfil",
		KeyLoginPage:              "Iniciar sesión",
		KeyEmailTaken:             "Esa dirección de correo ya está en uso",
		KeyProfileUpdated:         "Perfil actualizado",
		KeyInvalidLanguage:        "Idioma no admitido",
		KeyTooManyAttempts:        "Demasiados intentos de inicio de sesión, inténtelo más tarde",
	},
}

// Translator translates keys for a locale and matches requested locales
// against the supported set.
type Translator struct {
	defaultLocale string
	supported     []string
	tags          []language.Tag
	matcher       language.Matcher
	printers      map[string]*message.Printer
}

// New builds a Translator. defaultLocale must be in supported; it is moved to
// the front so the matcher falls back to it.
func New(defaultLocale string, supported []string) (*Translator, error) {
	defTag, err := language.Parse(defaultLocale)
	if err != nil {
		return nil, fmt.Errorf("parse default locale %q: %w", defaultLocale, err)
	}

	ordered := []string{defTag.String()}
	tags := []language.Tag{defTag}
	for _, raw := range supported {
		tag, err := language.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse supported locale %q: %w", raw, err)
		}
		if tag == defTag {
			continue
		}
		ordered = append(ordered, tag.String())
		tags = append(tags, tag)
	}

	builder := catalog.NewBuilder(catalog.Fallback(defTag))
	for i, tag := range tags {
		msgs, ok := messages[ordered[i]]
		if !ok {
			msgs = messages["en"]
		}
		for key, msg := range msgs {
			if err := builder.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("catalog %s/%s: %w", ordered[i], key, err)
			}
		}
	}

	printers := make(map[string]*message.Printer, len(tags))
	for i, tag := range tags {
		printers[ordered[i]] = message.NewPrinter(tag, message.Catalog(builder))
	}

	return &Translator{
		defaultLocale: ordered[0],
		supported:     ordered,
		tags:          tags,
		matcher:       language.NewMatcher(tags),
		printers:      printers,
	}, nil
}

// Default returns the system default locale.
func (t *Translator) Default() string {
	return t.defaultLocale
}

// Supported returns the supported locales, default first.
func (t *Translator) Supported() []string {
	return append([]string(nil), t.supported...)
}

// Match maps a raw locale ("fr", "fr-CA", "de-DE") to a supported locale.
// The boolean is false when raw is unparseable or has no reasonable match; the
// returned locale is then the default.
func (t *Translator) Match(raw string) (string, bool) {
	if raw == "" {
		return t.defaultLocale, false
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return t.defaultLocale, false
	}
	_, idx, conf := t.matcher.Match(tag)
	if conf == language.No {
		return t.defaultLocale, false
	}
	return t.supported[idx], true
}

// Valid reports whether raw resolves to one of the supported locales.
func (t *Translator) Valid(raw string) bool {
	_, ok := t.Match(raw)
	return ok
}

// T translates key in locale, formatting args into the message. Unknown
// locales use the default; unknown keys render as the key itself.
func (t *Translator) T(locale, key string, args ...any) string {
	p, ok := t.printers[locale]
	if !ok {
		p = t.printers[t.defaultLocale]
	}
	return p.Sprintf(key, args...)
}
