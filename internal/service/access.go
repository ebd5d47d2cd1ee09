package service

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/DukeRupert/constat/internal/domain"
)

// Messages returned to authors.
const (
	MsgReportNotFound     = "Constat introuvable"
	MsgReportNotFinalized = "Le constat doit être finalisé avant d'être envoyé"
	MsgAuthorRequired     = "Authentification requise"
	MsgNoRecipients       = "Au moins un destinataire est requis"
)

// authorize allows the creator of a report and members of its service.
// Anyone else gets ENOTFOUND so report ids cannot be probed.
func authorize(op string, user *domain.User, r *domain.StateReport) error {
	if user == nil {
		return domain.Unauthorized(op, MsgAuthorRequired)
	}
	if r.CreatedBy == user.ID {
		return nil
	}
	if r.ServiceID != nil && user.ServiceID != nil && *r.ServiceID == *user.ServiceID {
		return nil
	}
	return domain.NotFound(op, MsgReportNotFound)
}

// parseEmail returns the bare address of a single mailbox.
func parseEmail(s string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}

// parseRecipients validates and deduplicates a recipient list.
func parseRecipients(raw []string) ([]string, error) {
	var out []string
	for _, r := range domain.UniqueEmails(raw) {
		addr, err := parseEmail(r)
		if err != nil {
			return nil, fmt.Errorf("Adresse électronique invalide : %s", r)
		}
		out = append(out, addr)
	}
	out = domain.UniqueEmails(out)
	if len(out) == 0 {
		return nil, errors.New(MsgNoRecipients)
	}
	return out, nil
}
