package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/scholarly-tools/doideposit/internal/config"
)

var (
	tenantFlags   config.TenantConfig
	tenantDefault bool
)

var tenantsSetCmd = &cobra.Command{
	Use:   "tenants:set <context>",
	Short: "Create or update the CrossRef settings of a journal",
	Long: `Save the CrossRef account and journal settings of a context to the config
file. Flags that are not given keep their current value.

Example:
  doideposit tenants:set journal-a \
    --username jrnl --password secret --test-mode \
    --doi-prefix 10.1234 --journal-path jrnl \
    --journal-title "Journal A" --depositor-name "Press" --depositor-email ops@example.org \
    --default`,
	Args: cobra.ExactArgs(1),
	RunE: runTenantsSet,
}

func init() {
	f := tenantsSetCmd.Flags()
	f.StringVar(&tenantFlags.Username, "username", "", "CrossRef username")
	f.StringVar(&tenantFlags.Password, "password", "", "CrossRef password")
	f.BoolVar(&tenantFlags.TestMode, "test-mode", false, "deposit to the CrossRef sandbox")
	f.StringVar(&tenantFlags.DOIPrefix, "doi-prefix", "", "DOI prefix, e.g. 10.1234")
	f.StringVar(&tenantFlags.JournalPath, "journal-path", "", "journal path used in DOI suffixes")
	f.StringVar(&tenantFlags.SuffixPattern, "suffix-pattern", "", "DOI suffix pattern (default %j.%k%i)")
	f.StringVar(&tenantFlags.JournalTitle, "journal-title", "", "full journal title")
	f.StringVar(&tenantFlags.JournalAbbrev, "journal-abbrev", "", "abbreviated journal title")
	f.StringVar(&tenantFlags.ISSN, "issn", "", "journal ISSN")
	f.StringVar(&tenantFlags.DepositorName, "depositor-name", "", "depositor name")
	f.StringVar(&tenantFlags.DepositorEmail, "depositor-email", "", "depositor email")
	f.StringVar(&tenantFlags.Registrant, "registrant", "", "registrant (default depositor name)")
	f.StringVar(&tenantFlags.DepositURL, "deposit-url", "", "override the deposit endpoint")
	f.StringVar(&tenantFlags.StatusURL, "status-url", "", "override the submission status endpoint")
	f.BoolVar(&tenantDefault, "default", false, "make this the default context")
	rootCmd.AddCommand(tenantsSetCmd)
}

// mergeTenant applies the flags the user changed onto the current settings.
func mergeTenant(current config.TenantConfig, flags *pflag.FlagSet, values config.TenantConfig) config.TenantConfig {
	out := current
	set := map[string]func(){
		"username":        func() { out.Username = values.Username },
		"password":        func() { out.Password = values.Password },
		"test-mode":       func() { out.TestMode = values.TestMode },
		"doi-prefix":      func() { out.DOIPrefix = values.DOIPrefix },
		"journal-path":    func() { out.JournalPath = values.JournalPath },
		"suffix-pattern":  func() { out.SuffixPattern = values.SuffixPattern },
		"journal-title":   func() { out.JournalTitle = values.JournalTitle },
		"journal-abbrev":  func() { out.JournalAbbrev = values.JournalAbbrev },
		"issn":            func() { out.ISSN = values.ISSN },
		"depositor-name":  func() { out.DepositorName = values.DepositorName },
		"depositor-email": func() { out.DepositorEmail = values.DepositorEmail },
		"registrant":      func() { out.Registrant = values.Registrant },
		"deposit-url":     func() { out.DepositURL = values.DepositURL },
		"status-url":      func() { out.StatusURL = values.StatusURL },
	}
	flags.Visit(func(f *pflag.Flag) {
		if apply, ok := set[f.Name]; ok {
			apply()
		}
	})
	return out
}

func runTenantsSet(cmd *cobra.Command, args []string) error {
	id := args[0]
	current, _ := cfg.Tenant(id)
	tenant := mergeTenant(current, cmd.Flags(), tenantFlags)

	path := configPath()
	if path == "" {
		return fmt.Errorf("no config file to write to")
	}
	if err := config.SaveTenant(path, id, tenant); err != nil {
		return err
	}
	if tenantDefault {
		if err := config.SaveDefaultContext(path, id); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Saved tenant %s to %s\n", id, path)
	return err
}
