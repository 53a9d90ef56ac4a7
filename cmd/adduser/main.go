// Command adduser creates an account directly in the configured store.
//
//	adduser --username alice                  # prompts for the password on a terminal
//	echo "s3cret" | adduser --username alice  # reads one line from stdin
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/geocoder89/expensehub/internal/config"
	"github.com/geocoder89/expensehub/internal/db"
	"github.com/geocoder89/expensehub/internal/domain/user"
	"github.com/geocoder89/expensehub/internal/repo/memory"
	"github.com/geocoder89/expensehub/internal/repo/postgres"
	"github.com/geocoder89/expensehub/internal/security"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// test seams
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
	openStore    = openUserStore
)

type userCreator interface {
	Create(ctx context.Context, username, passwordHash string) (user.User, error)
}

func main() {
	_ = godotenv.Load()

	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "adduser:", err)
		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout io.Writer) *cli.App {
	var (
		username string
		password string
		dbURL    string
		driver   string
	)

	return &cli.App{
		Name:      "adduser",
		Usage:     "Create an expensehub account without going through the API",
		Writer:    stdout,
		ErrWriter: stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"u"},
				Usage:       "Name of the user to create",
				Destination: &username,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "password",
				Usage:       "Password for the new user; read from the terminal or stdin when omitted",
				Destination: &password,
			},
			&cli.StringFlag{
				Name:        "database-url",
				Usage:       "PostgreSQL connection string",
				EnvVars:     []string{"DATABASE_URL"},
				Destination: &dbURL,
			},
			&cli.StringFlag{
				Name:        "store",
				Usage:       "Store driver: postgres or memory (memory only validates the input)",
				EnvVars:     []string{"STORE_DRIVER"},
				Value:       config.StoreDriverPostgres,
				Destination: &driver,
			},
		},
		Action: func(c *cli.Context) error {
			username = strings.TrimSpace(username)
			if username == "" {
				return errors.New("username must not be blank")
			}

			if password == "" {
				var err error
				password, err = promptPassword(stdin, stdout)
				if err != nil {
					return err
				}
			}

			if password == "" {
				return errors.New("missing password")
			}
			if len(password) > security.MaxPasswordBytes {
				return fmt.Errorf("password must be at most %d bytes", security.MaxPasswordBytes)
			}

			store, closeStore, err := openStore(c.Context, strings.ToLower(driver), dbURL)
			if err != nil {
				return err
			}
			defer closeStore()

			hash, err := security.NewHasher().Hash(password)
			if err != nil {
				return err
			}

			u, err := store.Create(c.Context, username, hash)
			if err != nil {
				if errors.Is(err, user.ErrUsernameTaken) {
					return fmt.Errorf("username %q is already taken", username)
				}
				return err
			}

			fmt.Fprintf(stdout, "created user %s (%s)\n", u.Username, u.ID)
			return nil
		},
	}
}

// promptPassword reads without echo on a terminal, otherwise one line.
func promptPassword(stdin io.Reader, w io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && isTerminal(int(f.Fd())) {
		fmt.Fprint(w, "Enter password: ")
		pw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func openUserStore(ctx context.Context, driver, dbURL string) (userCreator, func(), error) {
	switch driver {
	case config.StoreDriverMemory:
		return memory.NewUsersRepo(), func() {}, nil

	case config.StoreDriverPostgres:
		if dbURL == "" {
			return nil, nil, errors.New("--database-url or DATABASE_URL is required")
		}

		pool, err := db.NewPool(ctx, dbURL)
		if err != nil {
			return nil, nil, err
		}

		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}

		return postgres.NewUsersRepo(pool, nil), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q", driver)
	}
}
