package cmd

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bgdnvk/fargo/internal/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List available AWS profiles",
	Long: `List the AWS profiles found in ~/.aws/credentials and ~/.aws/config.
The profile selected via --profile or the config file is marked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printer, err := newPrinter()
		if err != nil {
			return err
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return output.NewCLIError(output.ExitGeneral,
				"could not determine the home directory", err.Error(), "")
		}

		profiles := localAWSProfiles(home)
		if len(profiles) == 0 {
			printer.Info("no AWS profiles found under %s", filepath.Join(home, ".aws"))
			printer.Print("create one with 'aws configure' or 'aws configure sso'")
			return nil
		}

		selected := viper.GetString("profile")

		table := output.NewTableWithWriter(printer.Out(), []string{"PROFILE", "REGION", "SOURCE"})
		for _, p := range profiles {
			name := p.Name
			if name == selected {
				name += " (selected)"
			}
			region := p.Region
			if region == "" {
				region = "-"
			}
			table.AddRow([]string{name, region, p.Source})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

type awsProfile struct {
	Name   string
	Region string
	Source string
}

// localAWSProfiles merges the profiles declared in the credentials and
// config files. The config file wins nothing except filling in a region
// the credentials file does not carry.
func localAWSProfiles(home string) []awsProfile {
	credProfiles := parseAWSINIFile(filepath.Join(home, ".aws", "credentials"), "credentials")
	configProfiles := parseAWSINIFile(filepath.Join(home, ".aws", "config"), "config")

	merged := make(map[string]*awsProfile)
	for _, p := range credProfiles {
		profile := p
		merged[p.Name] = &profile
	}
	for _, p := range configProfiles {
		if existing, ok := merged[p.Name]; ok {
			if existing.Region == "" {
				existing.Region = p.Region
			}
			continue
		}
		profile := p
		merged[p.Name] = &profile
	}

	out := make([]awsProfile, 0, len(merged))
	for _, p := range merged {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var (
	iniSectionPattern = regexp.MustCompile(`^\s*\[([^\]]+)\]\s*$`)
	iniKVPattern      = regexp.MustCompile(`^\s*([^=\s]+)\s*=\s*(.+?)\s*$`)
)

// parseAWSINIFile extracts profile names and regions from one AWS INI
// file. Sections in the config file are named "profile <name>" except
// for the default profile.
func parseAWSINIFile(path, source string) []awsProfile {
	var profiles []awsProfile

	file, err := os.Open(path)
	if err != nil {
		return profiles
	}
	defer file.Close()

	var current *awsProfile
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()

		if matches := iniSectionPattern.FindStringSubmatch(line); len(matches) == 2 {
			if current != nil {
				profiles = append(profiles, *current)
			}
			name := strings.TrimSpace(matches[1])
			if source == "config" {
				name = strings.TrimPrefix(name, "profile ")
			}
			current = &awsProfile{Name: name, Source: source}
			continue
		}

		if current == nil {
			continue
		}
		if matches := iniKVPattern.FindStringSubmatch(line); len(matches) == 3 {
			if strings.EqualFold(strings.TrimSpace(matches[1]), "region") {
				current.Region = strings.TrimSpace(matches[2])
			}
		}
	}
	if current != nil {
		profiles = append(profiles, *current)
	}

	return profiles
}
