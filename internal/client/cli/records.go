package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/vmartynov/offsync/internal/client/models"
)

func parseKind(s string) (models.Kind, error) {
	for _, k := range models.Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown kind %q (expected one of %v)", s, models.Kinds())
}

func toFields(raw map[string]string) models.Fields {
	fields := models.Fields{}
	for k, v := range raw {
		fields[k] = v
	}
	return fields
}

func (a *App) list(ctx context.Context, args []string) {
	kinds := models.Kinds()
	if len(args) > 0 {
		kind, err := parseKind(args[0])
		if err != nil {
			log.Printf("error: %v", err)
			return
		}
		kinds = []models.Kind{kind}
	}

	for _, kind := range kinds {
		rows, err := a.recordService.List(ctx, kind)
		if err != nil {
			log.Printf("error: %v", err)
			return
		}
		for _, r := range rows {
			printRecord(r)
		}
	}
}

func printRecord(r *models.Record) {
	status := string(r.SyncStatus)
	if r.SyncStatus == models.StatusFailed && r.LastError != "" {
		status = fmt.Sprintf("%s (%s)", status, r.LastError)
	}
	fmt.Printf("%s  %-8s  %-14s  %v\n", r.LocalID, r.Kind, status, r.Fields)
}

func (a *App) add(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: add <kind>")
		return
	}
	kind, err := parseKind(args[0])
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	raw, err := GetFields(a.reader)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	rec, err := a.recordService.Add(ctx, kind, toFields(raw))
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	fmt.Printf("Created %s\n", rec.LocalID)
}

func (a *App) edit(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: edit <id>")
		return
	}

	raw, err := GetFields(a.reader)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	if _, err := a.recordService.Edit(ctx, args[0], toFields(raw)); err != nil {
		log.Printf("error: %v", err)
		return
	}
	fmt.Println("Updated")
}

func (a *App) delete(ctx context.Context, args []string) {
	var id string
	if len(args) > 0 {
		id = args[0]
	} else {
		var err error
		id, err = getSimpleText(a.reader, "Enter record id to delete", os.Stdout)
		if err != nil {
			log.Printf("error: %v", err)
			return
		}
	}

	if err := a.recordService.Delete(ctx, id); err != nil {
		log.Printf("error: %v", err)
		return
	}
	fmt.Println("Deleted")
}

func (a *App) show(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: show <id>")
		return
	}
	rec, err := a.recordService.Get(ctx, args[0])
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	printRecord(rec)
	if rec.SyncStatus == models.StatusConflict {
		fmt.Printf("  remote version: %v\n", rec.RemoteSnapshot)
	}
}
