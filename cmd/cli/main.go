package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/websitelelo/websitelelo/internal/config"
	"github.com/websitelelo/websitelelo/internal/content"
	"github.com/websitelelo/websitelelo/internal/filestore"
	"github.com/websitelelo/websitelelo/internal/mongostore"
	"github.com/websitelelo/websitelelo/internal/repository"
	"github.com/websitelelo/websitelelo/internal/store"
)

const usage = "expected 'add-admin', 'seed-plans' or 'import-local' subcommand"

func main() {
	addAdminCmd := flag.NewFlagSet("add-admin", flag.ExitOnError)
	email := addAdminCmd.String("email", "", "Email for the new admin")
	password := addAdminCmd.String("password", "", "Password for the new admin")

	seedCmd := flag.NewFlagSet("seed-plans", flag.ExitOnError)
	planFile := seedCmd.String("file", "", "YAML plan catalogue (defaults to the built-in Basic/Standard/Premium plans)")
	replace := seedCmd.Bool("replace", false, "Remove existing plans first")
	// The file store locks per process only: stop the server before
	// seeding a data directory it is serving from files.

	importCmd := flag.NewFlagSet("import-local", flag.ExitOnError)
	clearFiles := importCmd.Bool("clear", false, "Empty the local files after importing")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add-admin":
		addAdminCmd.Parse(os.Args[2:])
		if *email == "" || *password == "" {
			fmt.Println("email and password are required")
			addAdminCmd.PrintDefaults()
			os.Exit(1)
		}
		createAdmin(*email, *password)
	case "seed-plans":
		seedCmd.Parse(os.Args[2:])
		runSeed(*planFile, *replace)
	case "import-local":
		importCmd.Parse(os.Args[2:])
		runImport(*clearFiles)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

func createAdmin(email, password string) {
	cfg := loadConfig()
	ctx := context.Background()

	db, err := store.NewStore(cfg.AdminDBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	// Ensure table exists if running cli before server
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	admin, err := db.CreateAdmin(ctx, email, string(hashedPassword))
	if err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	fmt.Printf("Admin '%s' created successfully.\n", admin.Email)
}

// openCatalog connects to MongoDB when configured; the returned client is
// nil otherwise.
func openCatalog(ctx context.Context, cfg *config.Config) (*content.Catalog, *mongostore.Client) {
	var client *mongostore.Client
	if cfg.MongoURI != "" {
		c, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		client = c
	}
	ids, err := repository.NewSnowflakeIDs(cfg.CLINode())
	if err != nil {
		log.Fatalf("Failed to initialize id generator: %v", err)
	}
	catalog := content.NewCatalog(content.MongoPrimaries(client), content.Options{
		Files: filestore.New(cfg.DataDir),
		IDs:   ids,
	})
	return catalog, client
}

func runSeed(file string, replace bool) {
	cfg := loadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	data := defaultPlans
	if file != "" {
		var err error
		if data, err = os.ReadFile(file); err != nil {
			log.Fatalf("Failed to read %s: %v", file, err)
		}
	}
	plans, err := parsePlans(data)
	if err != nil {
		log.Fatalf("%v", err)
	}

	catalog, client := openCatalog(ctx, cfg)
	if client != nil {
		defer client.Disconnect(context.Background())
	}

	created, err := seedPlans(ctx, catalog.Plans, plans, replace)
	if err != nil {
		log.Fatalf("Failed to seed plans: %v", err)
	}
	target := "local files in " + cfg.DataDir
	if catalog.Connected() {
		target = "MongoDB"
	}
	fmt.Printf("Seeded %d plans into %s.\n", len(created), target)
}

func runImport(clearFiles bool) {
	cfg := loadConfig()
	if cfg.MongoURI == "" {
		log.Fatalf("MONGO_URI is not set; nothing to import into")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	catalog, client := openCatalog(ctx, cfg)
	defer client.Disconnect(context.Background())

	result, err := catalog.ImportLocal(ctx, clearFiles)
	for name, n := range result {
		fmt.Printf("%-14s %d imported\n", name, n)
	}
	if err != nil {
		log.Fatalf("Import stopped: %v", err)
	}
}
