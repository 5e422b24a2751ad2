package cmd

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/Rorical/RoriAgent/internal/config"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage API profiles",
	Long:  `Manage API profiles for different providers and configurations.`,
}

var listProfilesCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Active Profile: %s\n\n", cfg.ActiveProfile)
		fmt.Fprintln(out, "Available Profiles:")
		for _, name := range cfg.ProfileNames() {
			profile := cfg.Profiles[name]
			marker := ""
			if name == cfg.ActiveProfile {
				marker = " (active)"
			}
			fmt.Fprintf(out, "  %s%s\n", name, marker)
			fmt.Fprintf(out, "    Model: %s\n", profile.Model)
			if profile.BaseURL != "" {
				fmt.Fprintf(out, "    Base URL: %s\n", profile.BaseURL)
			}
			fmt.Fprintf(out, "    API Key: %s\n\n", yesNo(profile.APIKey != ""))
		}
		return nil
	},
}

var showProfileCmd = &cobra.Command{
	Use:   "show [profile-name]",
	Short: "Show profile details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		profileName := args[0]
		profile, exists := cfg.Profiles[profileName]
		if !exists {
			return fmt.Errorf("%w: %s", config.ErrProfileNotFound, profileName)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Profile: %s\n", profileName)
		fmt.Fprintf(out, "Model: %s\n", profile.Model)
		fmt.Fprintf(out, "Base URL: %s\n", profile.BaseURL)
		hasKey := "Not set"
		if profile.APIKey != "" {
			hasKey = "Set (hidden for security)"
		}
		fmt.Fprintf(out, "API Key: %s\n", hasKey)
		return nil
	},
}

var addProfileCmd = &cobra.Command{
	Use:   "add [profile-name]",
	Short: "Add a new profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var profileName string
		if len(args) > 0 {
			profileName = args[0]
		} else {
			prompt := promptui.Prompt{Label: "Profile name"}
			if profileName, err = prompt.Run(); err != nil {
				return fmt.Errorf("prompt failed: %w", err)
			}
		}
		if _, exists := cfg.Profiles[profileName]; exists {
			return fmt.Errorf("profile %q already exists", profileName)
		}

		profile, err := promptProfile(config.Profile{Model: "gpt-4o-mini"})
		if err != nil {
			return err
		}
		cfg.SetProfile(profileName, profile)
		if err := cfg.Save(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' added successfully!\n", profileName)
		return nil
	},
}

var editProfileCmd = &cobra.Command{
	Use:   "edit [profile-name]",
	Short: "Edit an existing profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		profileName, err := pickProfile(args, cfg.ProfileNames(), "Select profile to edit")
		if err != nil {
			return err
		}
		profile, exists := cfg.Profiles[profileName]
		if !exists {
			return fmt.Errorf("%w: %s", config.ErrProfileNotFound, profileName)
		}

		if profile, err = promptProfile(profile); err != nil {
			return err
		}
		cfg.SetProfile(profileName, profile)
		if err := cfg.Save(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' updated successfully!\n", profileName)
		return nil
	},
}

var deleteProfileCmd = &cobra.Command{
	Use:   "delete [profile-name]",
	Short: "Delete a profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		profileName, err := pickProfile(args, cfg.ProfileNames(), "Select profile to delete")
		if err != nil {
			return err
		}
		if _, exists := cfg.Profiles[profileName]; !exists {
			return fmt.Errorf("%w: %s", config.ErrProfileNotFound, profileName)
		}

		confirmPrompt := promptui.Prompt{
			Label:     fmt.Sprintf("Delete profile '%s'", profileName),
			IsConfirm: true,
		}
		if _, err := confirmPrompt.Run(); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Deletion cancelled")
			return nil
		}

		// The active profile moves to another one first.
		if cfg.ActiveProfile == profileName {
			next := ""
			for _, name := range cfg.ProfileNames() {
				if name != profileName {
					next = name
					break
				}
			}
			if next == "" {
				return errors.New("cannot delete the only profile")
			}
			if err := cfg.SwitchProfile(next); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active profile is now '%s'\n", next)
		}

		if err := cfg.DeleteProfile(profileName); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' deleted successfully!\n", profileName)
		return nil
	},
}

var switchProfileCmd = &cobra.Command{
	Use:   "switch [profile-name]",
	Short: "Switch to a different profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var others []string
		for _, name := range cfg.ProfileNames() {
			if name != cfg.ActiveProfile {
				others = append(others, name)
			}
		}
		if len(args) == 0 && len(others) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No other profiles available to switch to")
			return nil
		}

		profileName, err := pickProfile(args, others, "Select profile to switch to")
		if err != nil {
			return err
		}
		if err := cfg.SwitchProfile(profileName); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Switched to profile '%s'\n", profileName)
		return nil
	},
}

// pickProfile returns the name from args, or asks for one of names.
func pickProfile(args, names []string, label string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if len(names) == 0 {
		return "", errors.New("no profiles available")
	}
	prompt := promptui.Select{Label: label, Items: names}
	_, name, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("selection failed: %w", err)
	}
	return name, nil
}

// promptProfile asks for every profile field, offering p as defaults.
func promptProfile(p config.Profile) (config.Profile, error) {
	var err error
	apiKeyPrompt := promptui.Prompt{Label: "API Key", Default: p.APIKey, Mask: '*'}
	if p.APIKey, err = apiKeyPrompt.Run(); err != nil {
		return p, fmt.Errorf("prompt failed: %w", err)
	}
	modelPrompt := promptui.Prompt{Label: "Model", Default: p.Model}
	if p.Model, err = modelPrompt.Run(); err != nil {
		return p, fmt.Errorf("prompt failed: %w", err)
	}
	baseURLPrompt := promptui.Prompt{Label: "Base URL (optional)", Default: p.BaseURL}
	if p.BaseURL, err = baseURLPrompt.Run(); err != nil {
		return p, fmt.Errorf("prompt failed: %w", err)
	}
	return p, nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func init() {
	profileCmd.AddCommand(listProfilesCmd)
	profileCmd.AddCommand(showProfileCmd)
	profileCmd.AddCommand(addProfileCmd)
	profileCmd.AddCommand(editProfileCmd)
	profileCmd.AddCommand(deleteProfileCmd)
	profileCmd.AddCommand(switchProfileCmd)
}
