package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"openenterprise/paxcounter/msdisk"
)

var (
	diskOut    string
	diskLabel  string
	diskReadme string
)

var diskCmd = &cobra.Command{
	Use:   "disk",
	Short: "Write the USB mass-storage image to a file",
	Long: `Build the FAT12 volume the msc firmware variant exposes over USB and
write it to a file, for inspection with mtools or a loop mount.`,
	Args: cobra.NoArgs,
	RunE: runDisk,
}

func init() {
	diskCmd.Flags().StringVarP(&diskOut, "out", "o", "paxcounter.img", "Output file")
	diskCmd.Flags().StringVar(&diskLabel, "label", "PAXCOUNTER", "Volume label (up to 11 characters)")
	diskCmd.Flags().StringVar(&diskReadme, "readme", "", "File to store as README.TXT (default: built-in text)")
	rootCmd.AddCommand(diskCmd)
}

func runDisk(cmd *cobra.Command, args []string) error {
	readme := []byte("Openenterprise Paxcounter\r\n")
	if diskReadme != "" {
		b, err := os.ReadFile(diskReadme)
		if err != nil {
			return err
		}
		readme = b
	}
	img, err := buildImage(diskLabel, readme, time.Now())
	if err != nil {
		return err
	}
	if err := os.WriteFile(diskOut, img, 0o644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d bytes)\n", diskOut, len(img))
	return nil
}

func buildImage(label string, readme []byte, t time.Time) ([]byte, error) {
	d, err := msdisk.New(label, readme, msdisk.Stamp{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	})
	if err != nil {
		return nil, err
	}
	return d.Image(), nil
}
