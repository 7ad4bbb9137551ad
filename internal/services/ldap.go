package services

import (
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/mentorhub/backend/internal/config"
)

var ErrLDAPDisabled = errors.New("LDAP is not enabled")

type LDAPUser struct {
	DN       string
	Username string
	Email    string
	Nickname string
}

// LDAPService binds users against the directory. Settings stored in the
// system config override the file config once ldap_enabled has been saved.
type LDAPService struct {
	file    config.LDAPConfig
	configs *SystemConfigService
}

func NewLDAPService(file config.LDAPConfig, configs *SystemConfigService) *LDAPService {
	return &LDAPService{file: file, configs: configs}
}

func (s *LDAPService) settings() config.LDAPConfig {
	if s.configs == nil {
		return s.file
	}
	if _, err := s.configs.Get("ldap_enabled"); err != nil {
		return s.file
	}
	stored := s.configs.GetLDAPConfig()
	return config.LDAPConfig{
		Enabled:      stored.Enabled,
		Host:         stored.Host,
		Port:         stored.Port,
		BaseDN:       stored.BaseDN,
		BindDN:       stored.BindDN,
		BindPassword: s.configs.GetWithDefault("ldap_bind_password", ""),
		UserFilter:   stored.UserFilter,
		UseSSL:       stored.UseSSL,
	}
}

func (s *LDAPService) IsEnabled() bool {
	cfg := s.settings()
	return cfg.Enabled && cfg.Host != ""
}

// Authenticate finds the user with the service account, then binds as them.
func (s *LDAPService) Authenticate(username, password string) (*LDAPUser, error) {
	cfg := s.settings()
	if !cfg.Enabled || cfg.Host == "" {
		return nil, ErrLDAPDisabled
	}
	if password == "" {
		// an empty password would be an unauthenticated bind
		return nil, ErrInvalidCredentials
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var conn *ldap.Conn
	var err error
	if cfg.UseSSL {
		conn, err = ldap.DialURL("ldaps://"+addr, ldap.DialWithTLSConfig(&tls.Config{ServerName: cfg.Host}))
	} else {
		conn, err = ldap.DialURL("ldap://" + addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}
	defer conn.Close()

	if cfg.BindDN != "" {
		if err := conn.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			return nil, fmt.Errorf("failed to bind with service account: %w", err)
		}
	}

	filter := cfg.UserFilter
	if filter == "" {
		filter = "(uid=%s)"
	}
	result, err := conn.Search(ldap.NewSearchRequest(
		cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf(filter, ldap.EscapeFilter(username)),
		[]string{"dn", "cn", "mail", "uid", "sAMAccountName"},
		nil,
	))
	if err != nil {
		return nil, fmt.Errorf("LDAP search failed: %w", err)
	}
	if len(result.Entries) != 1 {
		return nil, ErrInvalidCredentials
	}

	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	user := &LDAPUser{
		DN:       entry.DN,
		Username: entry.GetAttributeValue("uid"),
		Email:    entry.GetAttributeValue("mail"),
		Nickname: entry.GetAttributeValue("cn"),
	}
	// Active Directory
	if user.Username == "" {
		user.Username = entry.GetAttributeValue("sAMAccountName")
	}
	if user.Username == "" {
		user.Username = username
	}
	return user, nil
}
