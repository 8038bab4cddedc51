package delta

import (
	"os"
	"os/user"
	"strconv"

	"github.com/firefly-engineering/onyx/internal/errors"
)

// Identity is what ResolveUser knows about the calling process.
type Identity struct {
	Euid     int
	Username string

	// SudoUser and SudoUID come from the sudo environment, if any.
	SudoUser string
	SudoUID  string

	// Lookup resolves a name in the user database.
	Lookup func(name string) (int, error)
}

// CurrentIdentity describes the running process.
func CurrentIdentity() Identity {
	id := Identity{
		Euid:     os.Geteuid(),
		SudoUser: os.Getenv("SUDO_USER"),
		SudoUID:  os.Getenv("SUDO_UID"),
		Lookup:   lookupUID,
	}
	if u, err := user.LookupId(strconv.Itoa(id.Euid)); err == nil {
		id.Username = u.Username
	} else if name := os.Getenv("USER"); name != "" {
		id.Username = name
	}
	return id
}

func lookupUID(name string) (int, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(u.Uid)
}

// ResolveUser maps a user name to the uid whose delta should be committed.
// It tries, in order: "self" or empty for the effective uid, the user
// database, the sudo caller when elevated, a numeric uid, and finally the
// current username.
func ResolveUser(name string, id Identity) (int, error) {
	if name == "" || name == "self" {
		return id.Euid, nil
	}

	var lookupErr error
	if id.Lookup != nil {
		uid, err := id.Lookup(name)
		if err == nil {
			return uid, nil
		}
		lookupErr = err
	}

	if id.Euid == 0 && id.SudoUser != "" && id.SudoUser == name {
		if uid, err := strconv.Atoi(id.SudoUID); err == nil && uid >= 0 {
			return uid, nil
		}
	}

	if uid, err := strconv.Atoi(name); err == nil && uid >= 0 {
		return uid, nil
	}

	if id.Username != "" && id.Username == name {
		return id.Euid, nil
	}

	return 0, errors.AuthorizationError("cannot resolve user "+strconv.Quote(name), lookupErr)
}
