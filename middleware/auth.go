package middleware

import (
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/deemkeen/smilodon/util"
	gossh "golang.org/x/crypto/ssh"
	"log"
)

// AuthMiddleware gates dashboard sessions on the adminKeys allowlist. Entries
// are OpenSSH SHA256 fingerprints (the ssh-keygen -lf form). An empty list
// leaves the dashboard open; every session is logged either way. The list is
// read through the holder so config reloads apply to the next session.
func AuthMiddleware(conf *util.ConfigHolder) wish.Middleware {
	return func(h ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			util.LogPublicKey(s)

			allowed := conf.Conf().Conf.AdminKeys
			if len(allowed) > 0 {
				key := s.PublicKey()
				if key == nil {
					log.Printf("Rejected ssh session from %s: no public key offered", s.User())
					wish.Println(s, "Access denied.")
					return
				}

				fingerprint := gossh.FingerprintSHA256(key)
				if !allowedFingerprint(allowed, fingerprint) {
					log.Printf("Rejected ssh session from %s (%s)", s.User(), fingerprint)
					wish.Println(s, "Access denied.")
					return
				}
			}

			h(s)
		}
	}
}

func allowedFingerprint(allowed []string, fingerprint string) bool {
	for _, want := range allowed {
		if want == fingerprint {
			return true
		}
	}
	return false
}
