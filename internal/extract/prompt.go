package extract

const financialSystemText = "You are a research analyst extracting tuition data for university programs. Search the web, prefer pages on the school's own site, and return a valid JSON object matching the requested schema. Use null for values not found. Never report out-of-state or non-resident rates as the main tuition amount."

const financialPrompt = `Find the current tuition cost for the following university program.

School: %s
Program: %s

Search only sources belonging to the school's own website (its .edu domain or official subdomains). Report resident/standard rates only; if you find non-resident or out-of-state rates, mention them in remarks instead.

Return a valid JSON object:
{
  "status": "<success | not_found>",
  "tuition_amount": "<stated total cost, e.g. $76,000, or null>",
  "tuition_period": "<what the amount covers: total program, per year, per semester, or null>",
  "academic_year": "<academic year the amount applies to, e.g. 2025-2026, or null>",
  "per_unit_cost": "<cost per credit/unit, e.g. $2,541, or null>",
  "credit_count": <number of credits required, or null>,
  "additional_fees": "<mandatory fees beyond tuition, or null>",
  "remarks": "<caveats, non-resident rates, scholarships, or null>"
}

Use "not_found" only when you cannot locate this program at this school at all.`

const curriculumSystemText = "You are a research analyst extracting curriculum data for university programs. Search the web and return a valid JSON object matching the requested schema. Use null for values not found."

const curriculumPrompt = `Find curriculum details for the following university program. Look at curriculum, degree-requirements, and program-overview pages.

School: %s
Program: %s

Return a valid JSON object:
{
  "credit_count": <total credits/units required to graduate, or null>,
  "program_length": "<typical duration, e.g. 2 years, 21 months, or null>",
  "official_program_name": "<the program's official name as the school states it, or null>",
  "is_stem": <true if the program is STEM-designated, false if not, null if unclear>
}`
