// receiptwatch watches a drop directory for receipt photos. Each stable new
// image is OCR'd and recorded as a pay-later grocery expense for the current
// month, so a shopper can dump photos from their phone and settle the dues
// from the dashboard later.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"messbook/models"
	"messbook/pkg/ledger"
	"messbook/pkg/receipt"
)

func main() {
	dir := flag.String("dir", "receipt-inbox", "directory to watch for receipt images")
	flag.Parse()

	dsn := os.Getenv("DB_DSN")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DB_DSN not set in environment")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	engine := ledger.NewEngine(db)

	if err := os.MkdirAll(*dir, 0755); err != nil {
		log.Fatalf("failed to create watch dir: %v", err)
	}
	processedDir := filepath.Join(*dir, "processed")
	if err := os.MkdirAll(processedDir, 0755); err != nil {
		log.Fatalf("failed to create processed dir: %v", err)
	}

	// Handle files already sitting in the inbox before watching.
	for _, name := range listImageFiles(*dir) {
		ingest(engine, *dir, processedDir, name)
	}

	if err := watchDirectory(engine, *dir, processedDir); err != nil {
		log.Fatalf("watch failed: %v", err)
	}
}

func ingest(engine *ledger.Engine, dir, processedDir, name string) {
	path := filepath.Join(dir, name)
	cents, raw, err := receipt.ExtractAmountCents(path)
	if err != nil {
		log.Printf("%s: %v (leaving in inbox)", name, err)
		return
	}
	day := time.Now().Day()
	exp, err := engine.RecordExpense(ledger.CurrentMonth(), ledger.ExpenseInput{
		Day:         day,
		AmountCents: cents,
		Category:    models.CategoryGroceries,
		Title:       name,
		PayLater:    true, // nobody has confirmed fund payment yet
	})
	if err != nil {
		log.Printf("%s: record expense: %v", name, err)
		return
	}
	if err := os.Rename(path, filepath.Join(processedDir, name)); err != nil {
		log.Printf("%s: move to processed: %v", name, err)
	}
	log.Printf("%s: recorded expense %d for %d cents (line %q)", name, exp.ID, cents, raw)
}

func listImageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func watchDirectory(engine *ledger.Engine, dir, processedDir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", dir)

	// simple debounce map of pending files so half-copied photos settle first
	pending := map[string]time.Time{}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create == fsnotify.Create || ev.Op&fsnotify.Write == fsnotify.Write {
				name := filepath.Base(ev.Name)
				if isSupportedExt(name) {
					pending[name] = time.Now()
				}
			}
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) > 300*time.Millisecond { // stable
					delete(pending, name)
					ingest(engine, dir, processedDir, name)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)
		}
	}
}

func isSupportedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".tif", ".tiff", ".bmp":
		return true
	}
	return false
}
