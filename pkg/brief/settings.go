package brief

import "strings"

var (
	CreativeSizes    = []string{"Banners", "Interstitial", "Skinning", "Top Banner"}
	DeviceCategories = []string{"Mobile", "Desktop", "All"}
	TargetGenders    = []string{"Male", "Female", "All"}
)

func pick(options []string, value, title, what string) (string, error) {
	value = strings.TrimSpace(value)
	for _, o := range options {
		if strings.EqualFold(o, value) {
			return o, nil
		}
	}
	return "", invalid(ErrInvalidSetting, title, "%q is not a valid %s. Choose one of: %s.", value, what, strings.Join(options, ", "))
}

func (b *Brief) SetCreativeSize(v string) error {
	s, err := pick(CreativeSizes, v, "Invalid Creative Size", "creative size")
	if err != nil {
		return err
	}
	b.CreativeSize = s
	return nil
}

// SetDeviceCategory accepts the long form ("All Devices") as well.
func (b *Brief) SetDeviceCategory(v string) error {
	s, err := pick(DeviceCategories, firstWord(v), "Invalid Device Category", "device category")
	if err != nil {
		return err
	}
	b.DeviceCategory = s
	return nil
}

func (b *Brief) SetTargetGender(v string) error {
	s, err := pick(TargetGenders, v, "Invalid Gender", "target gender")
	if err != nil {
		return err
	}
	b.TargetGender = s
	return nil
}

// SetDuration sets the campaign length in days.
func (b *Brief) SetDuration(days int) error {
	if days <= 0 {
		return invalid(ErrInvalidSetting, "Invalid Duration", "Duration must be a positive number of days.")
	}
	b.Duration = days
	return nil
}
