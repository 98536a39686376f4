package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"luxemap/estates/internal/auth"
	"luxemap/estates/internal/config"
	"luxemap/estates/internal/filter"
	"luxemap/estates/internal/fixtures"
	"luxemap/estates/internal/models"
	"luxemap/estates/internal/services"
)

func searchCmd() *cobra.Command {
	f := models.DefaultFilterState()
	var scope, sort string
	var uniform, asJSON bool

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Filter the property catalog the way the listings page does",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validator.New().Struct(f); err != nil {
				return fmt.Errorf("invalid filter: %w", err)
			}
			order, err := services.ParseSortOrder(sort)
			if err != nil {
				return err
			}
			catalog, err := fixtures.Default()
			if err != nil {
				return err
			}
			cfg := &config.Config{UniformPriceFilter: uniform}
			svc := services.NewPropertyService(cfg, catalog, services.NewImageOverrides(nil))
			results, err := svc.Search(cmd.Context(), f, filter.ParseScope(scope), order)
			if err != nil {
				return err
			}
			return printProperties(cmd, results, asJSON)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.Search, "query", "q", "", "Case-insensitive text matched against title and location")
	flags.StringVarP(&f.Type, "type", "t", "", "Exact category, e.g. Penthouse")
	flags.StringVarP(&f.Beds, "beds", "b", "", "Minimum bedrooms")
	flags.Int64Var(&f.MinPrice, "min-price", f.MinPrice, "Minimum price in dollars")
	flags.Int64Var(&f.MaxPrice, "max-price", f.MaxPrice, "Maximum price in dollars")
	flags.StringVar(&scope, "scope", filter.ScopeListings.String(), "Filter scope: listings or landing")
	flags.StringVar(&sort, "sort", "", "Sort order: price_asc or price_desc")
	flags.BoolVar(&uniform, "uniform-price", false, "Apply the price range under the landing scope too")
	flags.BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func printProperties(cmd *cobra.Command, props []models.Property, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(props)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTYPE\tBEDS\tPRICE\tLOCATION")
	for _, p := range props {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t$%.1fM\t%s\n", p.ID, p.Title, p.Type, p.Beds, float64(p.Price)/1e6, p.Location)
	}
	fmt.Fprintf(tw, "\n%d properties\n", len(props))
	return tw.Flush()
}

func vcardCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "vcard <agentId>",
		Short: "Export an agent's contact card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := fixtures.Default()
			if err != nil {
				return err
			}
			card, err := services.NewAgentService(catalog).ContactCard(args[0])
			if err != nil {
				return err
			}
			switch outPath {
			case "":
				_, err = fmt.Fprint(cmd.OutOrStdout(), card.Content)
				return err
			case ".":
				outPath = card.Filename
			}
			if err := os.WriteFile(outPath, []byte(card.Content), 0o644); err != nil {
				return fmt.Errorf("failed to write contact card: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write to this file (\".\" uses the download filename) instead of stdout")
	return cmd
}

func tokenCmd() *cobra.Command {
	var staffEmail string
	var isAdmin bool
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a staff JWT for the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validator.New().Var(staffEmail, "required,email"); err != nil {
				return fmt.Errorf("invalid --email: %w", err)
			}
			cfg, err := config.Load("cli")
			if err != nil {
				return err
			}
			if ttl == 0 {
				ttl = cfg.JwtTTL
			}
			token, err := auth.GenerateJWT(staffEmail, isAdmin, cfg.JwtSecret, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&staffEmail, "email", "", "Staff email address (token subject)")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "Grant administrator privileges")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to JWT_TTL_SECONDS)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

