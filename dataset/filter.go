package dataset

// FilterDataList returns the records of list that pass the filter config, in
// their original order.  In test mode, or with a nil config, every record is
// kept.
func FilterDataList(list []DataInfo, cfg *FilterConfig, testMode bool) []DataInfo {

	if testMode {
		return list
	}

	filterEmptyGT := false
	minSize := 0.0

	if cfg != nil {
		filterEmptyGT = cfg.FilterEmptyGT
		minSize = cfg.MinSize
	}

	valid := make([]DataInfo, 0, len(list))

	for _, info := range list {

		if filterEmptyGT && len(info.Instances) == 0 {
			continue
		}

		if float64(min(info.Width, info.Height)) >= minSize {
			valid = append(valid, info)
		}
	}

	return valid
}
