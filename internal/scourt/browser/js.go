package browser

// Portal entry point. The cortId query pin keeps the portal on the public
// main tab.
const portalURL = "https://ssgo.scourt.go.kr/ssgo/index.on?cortId=www"

// WebSquare element IDs on the search tab. The portal regenerates these on
// framework upgrades; they are isolated here for that reason.
const (
	selCourtSelect    = "#mf_ssgoTopMainTab_contents_content1_body_sbx_cortCd"
	selYearSelect     = "#mf_ssgoTopMainTab_contents_content1_body_sbx_csYr"
	selTypeSelect     = "#mf_ssgoTopMainTab_contents_content1_body_sbx_csDvsCd"
	selSerialInput    = "#mf_ssgoTopMainTab_contents_content1_body_ibx_csSerial"
	selPartyInput     = "#mf_ssgoTopMainTab_contents_content1_body_ibx_btprNm"
	selSaveCheckbox   = "#mf_ssgoTopMainTab_contents_content1_body_cbx_saveCsRsltYn_input_0"
	selCaptchaImg     = "#mf_ssgoTopMainTab_contents_content1_body_img_captcha"
	selCaptchaInput   = "#mf_ssgoTopMainTab_contents_content1_body_ibx_answer"
	selCaptchaRefresh = "#mf_ssgoTopMainTab_contents_content1_body_btn_reloadCaptcha"
	selSearchButton   = "#mf_ssgoTopMainTab_contents_content1_body_btn_srchCs"
	selSavedCases     = "#mf_ssgoTopMainTab_contents_content1_body_csSrchRsltGrid_body_tbody"
)

// Captures window.alert/confirm text so the mismatch banner can be read
// back after a submit. Installed on every new document.
const jsAlertHook = `() => {
	window.__lastAlert = '';
	window.alert = (m) => { window.__lastAlert = String(m); };
	window.confirm = (m) => { window.__lastAlert = String(m); return true; };
}`

const jsReadLastAlert = `() => {
	const m = window.__lastAlert || '';
	window.__lastAlert = '';
	return m;
}`

// Sets a select/input value the WebSquare way: direct assignment plus a
// bubbling change event, since synthetic keystrokes are ignored by its
// data binding.
const jsSetValue = `(sel, val) => {
	const el = document.querySelector(sel);
	if (!el) return false;
	el.value = val;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
}`

const jsClearValue = `(sel) => {
	const el = document.querySelector(sel);
	if (el) el.value = '';
}`

const jsIsChecked = `(sel) => {
	const el = document.querySelector(sel);
	return !!(el && el.checked);
}`

// Reads the saved-case list from the WebSquare data list (which carries the
// encrypted case token), falling back to the portal's base64 localStorage
// mirror. Returns a JSON string.
const jsSavedCases = `() => {
	const list = window['mf_ssgoTopMainTab_contents_content1_body_dlt_csSrchHistList'];
	if (list && list.getRowCount) {
		const out = [];
		for (let i = 0; i < list.getRowCount(); i++) {
			const row = list.getRowJSON(i);
			out.push({
				court: row.cortNm || '',
				courtCode: row.cortCd || '',
				caseNumber: row.csNo || '',
				caseName: row.csNm || '',
				encCaseToken: row.encCsNo || '',
			});
		}
		return JSON.stringify(out);
	}
	const hist = localStorage.getItem('SSGO10LM01_CS_SRCH_HIST_mainCsHist');
	if (!hist) return '[]';
	try {
		const parsed = JSON.parse(decodeURIComponent(atob(hist)));
		if (!Array.isArray(parsed)) return '[]';
		return JSON.stringify(parsed.map((r) => ({
			court: r.cortNm || '',
			courtCode: r.cortCd || '',
			caseNumber: r.csNo || '',
			caseName: r.csNm || '',
			encCaseToken: r.encCsNo || '',
		})));
	} catch {
		return '[]';
	}
}`

// Opens a saved case's detail view by case number. Returns whether a row
// matched.
const jsOpenSavedCase = `(caseNumber) => {
	const tbody = document.querySelector('` + selSavedCases + `');
	if (!tbody) return false;
	for (const row of tbody.querySelectorAll('tr')) {
		const cells = row.querySelectorAll('td');
		const no = cells[3] ? cells[3].textContent.trim() : '';
		if (no === caseNumber) {
			row.click();
			return true;
		}
	}
	return false;
}`

// Extracts the general-information table of the open case detail view as a
// label→value JSON object. Works on the rendered DOM, so it covers both the
// WebSquare grid and the static fallback rendering.
const jsExtractBasicInfo = `() => {
	const out = {};
	for (const row of document.querySelectorAll('.w2tabcontrol_contents_visible table tr, .cs-detail table tr')) {
		const ths = row.querySelectorAll('th');
		const tds = row.querySelectorAll('td');
		for (let i = 0; i < ths.length && i < tds.length; i++) {
			const k = ths[i].textContent.trim();
			const v = tds[i].textContent.trim();
			if (k) out[k] = v;
		}
	}
	return JSON.stringify(out);
}`

// Extracts hearing and progress rows plus the filed-document and
// related-case tables. Prefers the WebSquare data lists; falls back to
// scraping the rendered tables, where the full date hides in a row
// attribute when the visible cell is truncated.
const jsExtractEntries = `() => {
	const result = { hearings: [], progress: [], documents: [], related: [] };

	const fromList = (name, map) => {
		const list = window[name];
		if (!list || !list.getRowCount) return null;
		const out = [];
		for (let i = 0; i < list.getRowCount(); i++) out.push(map(list.getRowJSON(i)));
		return out;
	};

	const hearings = fromList('mf_ssgoTopMainTab_contents_content1_body_dlt_trmList', (r) => ({
		date: r.trmDt || '', time: r.trmHm || '', type: r.trmNm || '',
		location: r.trmPntNm || '', result: r.rslt || '',
	}));
	const progress = fromList('mf_ssgoTopMainTab_contents_content1_body_dlt_prcdList', (r) => ({
		date: r.prcdDt || '', content: r.prcdNm || '', result: r.prcdRslt || '',
	}));
	if (hearings) result.hearings = hearings;
	if (progress) result.progress = progress;

	if (!hearings) {
		for (const row of document.querySelectorAll('[id*="trmGrid"] tbody tr')) {
			const c = row.querySelectorAll('td');
			if (c.length < 3) continue;
			result.hearings.push({
				date: row.getAttribute('data-trm-dt') || (c[0] ? c[0].textContent.trim() : ''),
				time: c[1] ? c[1].textContent.trim() : '',
				type: c[2] ? c[2].textContent.trim() : '',
				location: c[3] ? c[3].textContent.trim() : '',
				result: c[4] ? c[4].textContent.trim() : '',
			});
		}
	}
	if (!progress) {
		for (const row of document.querySelectorAll('[id*="prcdGrid"] tbody tr')) {
			const c = row.querySelectorAll('td');
			if (c.length < 2) continue;
			result.progress.push({
				date: row.getAttribute('data-prcd-dt') || (c[0] ? c[0].textContent.trim() : ''),
				content: c[1] ? c[1].textContent.trim() : '',
				result: c[2] ? c[2].textContent.trim() : '',
			});
		}
	}

	// filed documents: date + description rows under the document group
	const docSection = document.querySelector('.w2group[id*="dcmt"], .w2group[id*="서류"]');
	if (docSection) {
		for (const row of docSection.querySelectorAll('table tbody tr')) {
			const c = row.querySelectorAll('td');
			if (c.length < 2) continue;
			const date = c[0] ? c[0].textContent.trim() : '';
			if (!/\d{4}\.\d{2}\.\d{2}/.test(date)) continue;
			result.documents.push({
				date: date,
				content: c[1] ? c[1].textContent.trim() : '',
			});
		}
	}

	// related cases: the case number usually sits in a link in the first cell
	const rltnSection = document.querySelector(
		'.w2group[id*="rltn"], .w2group[id*="연계"], .w2group[id*="관련"]');
	if (rltnSection) {
		for (const row of rltnSection.querySelectorAll('table tbody tr')) {
			const c = row.querySelectorAll('td');
			if (c.length < 1) continue;
			const link = row.querySelector('a');
			const caseNumber = (link ? link.textContent.trim() : '') ||
				(c[0] ? c[0].textContent.trim() : '');
			if (!/\d{4}/.test(caseNumber)) continue;
			result.related.push({
				caseNumber: caseNumber,
				caseName: c.length >= 2 ? c[1].textContent.trim() : '',
				relation: c.length >= 3 ? c[2].textContent.trim() : '',
			});
		}
	}
	return JSON.stringify(result);
}`

// Result grid presence signals that the gate was passed and the search ran.
const jsHasResultRows = `() => {
	const tbody = document.querySelector('` + selSavedCases + `');
	return !!(tbody && tbody.querySelectorAll('tr').length > 0);
}`
