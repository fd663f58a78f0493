package cli

import (
	"context"
	"fmt"
	"log"
	"os"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts the user for a login and password and attempts to create
// a new account on the server.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter login", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	if err := a.api.Register(ctx, userName, string(password)); err != nil {
		log.Printf("Registration unsuccessful: %s", err.Error())
		return err
	}

	fmt.Println("Success!")
	return nil
}

// Login prompts the user for credentials and exchanges them for a bearer
// token. A successful login flips the client online and requests a sync
// cycle.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter login", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	token, err := a.api.Login(ctx, userName, string(password))
	if err != nil {
		log.Printf("Login unsuccessful: %s", err.Error())
		return err
	}

	a.token.Store(token)
	a.userName = userName
	a.setMode(ModeOnline)
	a.scheduler.Request()
	log.Printf("Login successful")
	return nil
}

// Logout drops the in-memory token. Local records stay on disk; pending
// changes sync on the next login.
func (a *App) Logout(ctx context.Context) error {
	a.token.Store("")
	a.userName = ""
	return nil
}
