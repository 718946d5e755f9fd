// Package hpss moves finished archive payloads to their storage tier.
package hpss

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Endpoint is the remote tier a session writes to. Prepare runs once before
// any chunk is built; Put moves one finished payload. A Put failure means
// the payload is not durable and its records must never reach the index.
type Endpoint interface {
	Prepare() error
	Put(localPath string, keep bool) error
}

// For selects the endpoint for a destination string. The literal "none"
// means local-only archiving: payloads stay in the cache directory.
func For(destination string) Endpoint {
	if strings.EqualFold(destination, "none") {
		return None{}
	}
	return &Shell{Destination: destination}
}

// Shell transfers through the hsi command line utility.
type Shell struct {
	Destination string
}

func (s *Shell) hsi(command string) ([]byte, error) {
	log.Debug().Str("command", command).Msg("running hsi")
	out, err := exec.Command("hsi", "-q", command).CombinedOutput()
	if err != nil {
		return out, errors.Wrapf(err, "hsi %q: %s", command, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// Prepare creates the destination directory and verifies it is empty. A
// non-empty destination is a setup fault: mixing sessions in one directory
// would break the ordinal chunk naming.
func (s *Shell) Prepare() error {
	if _, err := s.hsi(fmt.Sprintf("mkdir -p %s", s.Destination)); err != nil {
		return errors.Wrapf(err, "could not create HPSS directory %s", s.Destination)
	}

	out, err := s.hsi(fmt.Sprintf("cd %s; ls", s.Destination))
	if err != nil {
		return errors.Wrapf(err, "could not list HPSS directory %s", s.Destination)
	}
	if strings.TrimSpace(string(out)) != "" {
		return errors.Errorf("target HPSS directory is not empty: %s", s.Destination)
	}
	return nil
}

func (s *Shell) Put(localPath string, keep bool) error {
	log.Info().Str("file", localPath).Str("hpss", s.Destination).Msg("transferring to HPSS")
	if _, err := s.hsi(fmt.Sprintf("cd %s; put %s", s.Destination, localPath)); err != nil {
		return err
	}
	if !keep {
		if err := os.Remove(localPath); err != nil {
			return errors.Wrapf(err, "removing local copy of %s", localPath)
		}
		log.Debug().Str("file", localPath).Msg("local copy removed")
	}
	return nil
}

// None is the endpoint for --hpss none. Payloads are already durable in the
// local cache, so Put keeps them in place regardless of the keep flag.
type None struct{}

func (None) Prepare() error { return nil }

func (None) Put(localPath string, keep bool) error {
	log.Debug().Str("file", localPath).Msg("local archiving, keeping payload in cache")
	return nil
}
