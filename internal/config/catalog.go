package config

const (
	rustupURL  = "https://sh.rustup.rs"
	nvmURL     = "https://raw.githubusercontent.com/nvm-sh/nvm/v0.40.1/install.sh"
	foundryURL = "https://foundry.paradigm.xyz"
	foundryGit = "https://github.com/foundry-rs/foundry"
)

func windowsTools() []ToolConfig {
	return []ToolConfig{
		{
			ID:      "git",
			Name:    "Git",
			Check:   CheckConfig{Command: "git"},
			Install: InstallConfig{Package: &PackageInstall{ID: "Git.Git"}},
		},
		{
			ID:      "rustup",
			Name:    "Rust (rustup)",
			Check:   CheckConfig{Command: "rustup", Files: []string{"~/.cargo/bin/rustup.exe"}},
			Install: InstallConfig{Package: &PackageInstall{ID: "Rustlang.Rustup"}},
		},
		{
			ID:      "nvm",
			Name:    "NVM for Windows",
			Check:   CheckConfig{Command: "nvm", Package: true},
			Install: InstallConfig{Package: &PackageInstall{ID: "CoreyButler.NVMforWindows"}},
		},
		{
			ID:      "wsl",
			Name:    "Windows Subsystem for Linux",
			Check:   CheckConfig{Succeeds: []string{"wsl", "--status"}},
			Install: InstallConfig{Command: []string{"wsl", "--install", "--no-distribution"}},
			Confirm: "Docker Desktop needs the Windows Subsystem for Linux. Enable it now (a reboot may be required)?",
		},
		{
			ID:        "docker",
			Name:      "Docker Desktop",
			Check:     CheckConfig{Command: "docker", Files: []string{`C:\Program Files\Docker\Docker\Docker Desktop.exe`}},
			Install:   InstallConfig{Package: &PackageInstall{ID: "Docker.DockerDesktop"}},
			DependsOn: []string{"wsl"},
		},
		{
			ID:      "wireguard",
			Name:    "WireGuard",
			Check:   CheckConfig{Command: "wg", Files: []string{`C:\Program Files\WireGuard\wireguard.exe`}},
			Install: InstallConfig{Package: &PackageInstall{ID: "WireGuard.WireGuard"}},
		},
		{
			ID:      "python",
			Name:    "Python 3.12",
			Check:   CheckConfig{Package: true},
			Install: InstallConfig{Package: &PackageInstall{ID: "Python.Python.3.12"}},
		},
		{
			ID:      "virtualbox",
			Name:    "VirtualBox",
			Check:   CheckConfig{Command: "VBoxManage", Files: []string{`C:\Program Files\Oracle\VirtualBox\VBoxManage.exe`}},
			Install: InstallConfig{Package: &PackageInstall{ID: "Oracle.VirtualBox"}},
		},
	}
}

func windowsSteps() []StepConfig {
	return []StepConfig{
		{
			Name:      "rust-toolchain",
			Requires:  []string{"rustup"},
			NeedsPath: true,
			Run:       [][]string{{"rustup", "default", "stable"}},
		},
		{
			Name:      "node-lts",
			Requires:  []string{"nvm"},
			NeedsPath: true,
			Run:       [][]string{{"nvm", "install", "lts"}, {"nvm", "use", "lts"}},
		},
		{
			Name:      "foundry",
			Requires:  []string{"rustup"},
			NeedsPath: true,
			Run: [][]string{{
				"cargo", "install", "--git", foundryGit, "--profile", "release", "--locked",
				"forge", "cast", "anvil", "chisel",
			}},
		},
	}
}

func ubuntuTools() []ToolConfig {
	return []ToolConfig{
		{
			ID:      "prerequisites",
			Name:    "Build prerequisites",
			Check:   CheckConfig{Package: true},
			Install: InstallConfig{Package: &PackageInstall{ID: "build-essential curl ca-certificates"}},
		},
		{
			ID:      "git",
			Name:    "Git",
			Check:   CheckConfig{Command: "git"},
			Install: InstallConfig{Package: &PackageInstall{ID: "git"}},
		},
		{
			ID:    "rustup",
			Name:  "Rust (rustup)",
			Check: CheckConfig{Command: "rustup", Files: []string{"~/.cargo/bin/rustup"}},
			Install: InstallConfig{Script: &ScriptInstall{
				URL:  rustupURL,
				Args: []string{"-y", "--no-modify-path"},
			}},
			DependsOn: []string{"prerequisites"},
			AsUser:    true,
		},
		{
			ID:    "nvm",
			Name:  "nvm",
			Check: CheckConfig{Files: []string{"~/.nvm/nvm.sh"}},
			Install: InstallConfig{Script: &ScriptInstall{
				URL:         nvmURL,
				Interpreter: []string{"bash"},
			}},
			DependsOn: []string{"prerequisites"},
			AsUser:    true,
		},
		{
			ID:      "docker",
			Name:    "Docker Engine",
			Check:   CheckConfig{Command: "docker"},
			Install: InstallConfig{Package: &PackageInstall{ID: "docker.io"}},
		},
		{
			ID:      "wireguard",
			Name:    "WireGuard",
			Check:   CheckConfig{Command: "wg"},
			Install: InstallConfig{Package: &PackageInstall{ID: "wireguard"}},
		},
		{
			ID:    "foundry",
			Name:  "Foundry (foundryup)",
			Check: CheckConfig{Command: "foundryup", Files: []string{"~/.foundry/bin/foundryup"}},
			Install: InstallConfig{Script: &ScriptInstall{
				URL:         foundryURL,
				Interpreter: []string{"bash"},
			}},
			DependsOn: []string{"prerequisites"},
			AsUser:    true,
		},
		{
			ID:      "python",
			Name:    "Python 3",
			Check:   CheckConfig{Command: "python3", VersionArgs: []string{"--version"}, MinimumVersion: "3.10"},
			Install: InstallConfig{Package: &PackageInstall{ID: "python3 python3-pip python3-venv"}},
		},
		{
			ID:      "virtualbox",
			Name:    "VirtualBox",
			Check:   CheckConfig{Command: "VBoxManage"},
			Install: InstallConfig{Package: &PackageInstall{ID: "virtualbox"}},
		},
	}
}

func ubuntuSteps() []StepConfig {
	return []StepConfig{
		{
			Name:      "rust-toolchain",
			Requires:  []string{"rustup"},
			NeedsPath: true,
			Run:       [][]string{{"rustup", "default", "stable"}},
			AsUser:    true,
		},
		{
			Name:     "node-lts",
			Requires: []string{"nvm"},
			Run:      [][]string{{"bash", "-c", `. "$HOME/.nvm/nvm.sh" && nvm install --lts`}},
			AsUser:   true,
		},
		{
			Name:      "foundryup",
			Requires:  []string{"foundry"},
			NeedsPath: true,
			Run:       [][]string{{"foundryup"}},
			AsUser:    true,
		},
		{
			Name:     "docker-group",
			Requires: []string{"docker"},
			Run:      [][]string{{"usermod", "-aG", "docker", "{user}"}},
		},
	}
}
